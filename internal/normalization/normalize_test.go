package normalization

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
)

const testPubkey = "02aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

var testObservedAt = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNormalize_SumsChannelTotals(t *testing.T) {
	raw := RawNode{Pubkey: testPubkey, Alias: "alpha", UptimePercentage: 98.5}
	channels := []RawChannel{
		{ChannelID: "1", Capacity: 5_000_000, LocalBalance: 2_000_000, RemoteBalance: 2_900_000, NumForwards: 100, FeesEarned: 3_000, Uptime: 0.9, Status: "active"},
		{ChannelID: "2", Capacity: 3_000_000, LocalBalance: 1_000_000, RemoteBalance: 1_950_000, NumForwards: 40, FeesEarned: 1_500, Uptime: 0.8, Status: "inactive"},
	}

	snap, recs, err := Normalize(raw, channels, testObservedAt)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if snap.Pubkey != testPubkey {
		t.Errorf("expected pubkey %s, got %s", testPubkey, snap.Pubkey)
	}
	if snap.Alias != "alpha" {
		t.Errorf("expected alias alpha, got %s", snap.Alias)
	}
	if snap.TotalCapacity != 8_000_000 {
		t.Errorf("expected total capacity 8000000, got %d", snap.TotalCapacity)
	}
	if snap.ChannelCount != 2 {
		t.Errorf("expected channel count 2, got %d", snap.ChannelCount)
	}
	if snap.ActiveChannelCount != 1 {
		t.Errorf("expected active channel count 1, got %d", snap.ActiveChannelCount)
	}
	if snap.TotalLocalBalance != 3_000_000 {
		t.Errorf("expected total local 3000000, got %d", snap.TotalLocalBalance)
	}
	if snap.TotalRemoteBalance != 4_850_000 {
		t.Errorf("expected total remote 4850000, got %d", snap.TotalRemoteBalance)
	}
	if snap.TotalFeesEarned != 4_500 {
		t.Errorf("expected total fees 4500, got %d", snap.TotalFeesEarned)
	}
	if snap.TotalForwards != 140 {
		t.Errorf("expected total forwards 140, got %d", snap.TotalForwards)
	}
	if snap.UptimePercentage != 98.5 {
		t.Errorf("expected uptime 98.5, got %f", snap.UptimePercentage)
	}
	if !snap.ObservedAt.Equal(testObservedAt) {
		t.Errorf("expected observed_at %v, got %v", testObservedAt, snap.ObservedAt)
	}

	// 8_000_000 - 3_000_000 - 4_850_000 = 150_000 unaccounted for
	if snap.BalanceDiscrepancy != 150_000 {
		t.Errorf("expected balance discrepancy 150000, got %d", snap.BalanceDiscrepancy)
	}

	if len(recs) != 2 {
		t.Fatalf("expected 2 channel records, got %d", len(recs))
	}
	if recs[0].NodePubkey != testPubkey {
		t.Errorf("expected channel node pubkey %s, got %s", testPubkey, recs[0].NodePubkey)
	}
	if recs[0].Status != domain.ChannelActive {
		t.Errorf("expected first channel ACTIVE, got %s", recs[0].Status)
	}
	if recs[1].Status != domain.ChannelInactive {
		t.Errorf("expected second channel INACTIVE, got %s", recs[1].Status)
	}
}

func TestNormalize_MissingOptionalFieldsDefault(t *testing.T) {
	raw := RawNode{Pubkey: testPubkey}
	channels := []RawChannel{
		{ChannelID: "1"}, // all numeric fields absent
	}

	snap, recs, err := Normalize(raw, channels, testObservedAt)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if snap.Alias != "" {
		t.Errorf("expected empty alias, got %q", snap.Alias)
	}
	if snap.TotalCapacity != 0 || snap.UptimePercentage != 0 {
		t.Errorf("expected zero defaults, got capacity=%d uptime=%f", snap.TotalCapacity, snap.UptimePercentage)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 channel record, got %d", len(recs))
	}
	if recs[0].Status != domain.ChannelInactive {
		t.Errorf("expected unknown status to map to INACTIVE, got %s", recs[0].Status)
	}
}

func TestNormalize_SkipsChannelWithoutID(t *testing.T) {
	raw := RawNode{Pubkey: testPubkey}
	channels := []RawChannel{
		{Capacity: 1_000_000, Status: "active"}, // no ID
		{ChannelID: "ok", Capacity: 2_000_000, Status: "active"},
	}

	snap, recs, err := Normalize(raw, channels, testObservedAt)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 channel record, got %d", len(recs))
	}
	if snap.TotalCapacity != 2_000_000 {
		t.Errorf("expected skipped channel excluded from totals, got capacity %d", snap.TotalCapacity)
	}
	if snap.ChannelCount != 1 {
		t.Errorf("expected channel count 1, got %d", snap.ChannelCount)
	}
}

func TestNormalize_MalformedPubkey(t *testing.T) {
	cases := []struct {
		name   string
		pubkey string
	}{
		{"empty", ""},
		{"too short", "02abcd"},
		{"too long", testPubkey + "00"},
		{"non-hex", "02zzbbccddeeff00112233445566778899aabbccddeeff00112233445566778899"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Normalize(RawNode{Pubkey: tc.pubkey}, nil, testObservedAt)
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := RawNode{Pubkey: testPubkey, Alias: "beta", UptimePercentage: 97.0}
	channels := []RawChannel{
		{ChannelID: "1", Capacity: 4_000_000, LocalBalance: 2_000_000, RemoteBalance: 1_900_000, NumForwards: 50, FeesEarned: 900, Uptime: 0.95, Status: "active"},
	}

	snap1, recs1, err := Normalize(raw, channels, testObservedAt)
	if err != nil {
		t.Fatalf("first Normalize failed: %v", err)
	}
	snap2, recs2, err := Normalize(raw, channels, testObservedAt)
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}

	if !reflect.DeepEqual(snap1, snap2) {
		t.Errorf("snapshots differ between identical runs:\n%+v\n%+v", snap1, snap2)
	}
	if !reflect.DeepEqual(recs1, recs2) {
		t.Errorf("channel records differ between identical runs")
	}
}

func TestNormalize_ClampsChannelUptime(t *testing.T) {
	raw := RawNode{Pubkey: testPubkey}
	channels := []RawChannel{
		{ChannelID: "1", Uptime: 1.7, Status: "active"},
		{ChannelID: "2", Uptime: -0.3, Status: "active"},
	}

	_, recs, err := Normalize(raw, channels, testObservedAt)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if recs[0].Uptime != 1.0 {
		t.Errorf("expected uptime clamped to 1.0, got %f", recs[0].Uptime)
	}
	if recs[1].Uptime != 0.0 {
		t.Errorf("expected uptime clamped to 0.0, got %f", recs[1].Uptime)
	}
}
