package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Feustey/lightdash/internal/domain"
)

const narrativeSystemPrompt = `You are an assistant for a Lightning Network node operator.
Summarize the node's health and the open recommendations in plain language,
in at most three short paragraphs. Do not invent numbers.`

// Generator produces the dashboard's narrative health summary. When no
// completion client is configured, or the API fails, it falls back to a
// deterministic template so the dashboard always has text to show.
type Generator struct {
	client CompletionClient // may be nil
	logger *zap.Logger
}

// NewGenerator creates a narrative generator. client may be nil to run
// template-only.
func NewGenerator(client CompletionClient, logger *zap.Logger) *Generator {
	return &Generator{
		client: client,
		logger: logger.Named("narrative"),
	}
}

// Narrative summarizes the latest snapshot and open actions.
func (g *Generator) Narrative(ctx context.Context, snap *domain.NodeSnapshot, actions []*domain.Action) string {
	fallback := templateNarrative(snap, actions)

	if g.client == nil {
		return fallback
	}

	text, err := g.client.Complete(ctx, narrativeSystemPrompt, narrativePrompt(snap, actions))
	if err != nil {
		g.logger.Warn("completion failed, using template narrative", zap.Error(err))
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	return text
}

// narrativePrompt renders the facts the model is allowed to use.
func narrativePrompt(snap *domain.NodeSnapshot, actions []*domain.Action) string {
	var b strings.Builder

	if snap != nil {
		fmt.Fprintf(&b, "Node %s (%s):\n", shortPubkey(snap.Pubkey), snap.Alias)
		fmt.Fprintf(&b, "- total capacity: %d sats across %d channels (%d active)\n",
			snap.TotalCapacity, snap.ChannelCount, snap.ActiveChannelCount)
		fmt.Fprintf(&b, "- local/remote balance: %d / %d sats\n",
			snap.TotalLocalBalance, snap.TotalRemoteBalance)
		fmt.Fprintf(&b, "- uptime: %.1f%%\n", snap.UptimePercentage)
	}

	if len(actions) == 0 {
		b.WriteString("No open recommendations.\n")
		return b.String()
	}

	b.WriteString("Open recommendations:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Priority, a.Kind, a.Description)
	}
	return b.String()
}

// templateNarrative is the deterministic fallback summary.
func templateNarrative(snap *domain.NodeSnapshot, actions []*domain.Action) string {
	var b strings.Builder

	if snap == nil {
		b.WriteString("No snapshot has been collected for this node yet.")
	} else {
		name := snap.Alias
		if name == "" {
			name = shortPubkey(snap.Pubkey)
		}
		fmt.Fprintf(&b, "%s is running %d channels (%d active) with %d sats of total capacity and %.1f%% uptime.",
			name, snap.ChannelCount, snap.ActiveChannelCount, snap.TotalCapacity, snap.UptimePercentage)
	}

	switch len(actions) {
	case 0:
		b.WriteString(" There are no open recommendations.")
	case 1:
		fmt.Fprintf(&b, " There is 1 open recommendation: %s (%s priority).",
			actions[0].Kind, strings.ToLower(string(actions[0].Priority)))
	default:
		fmt.Fprintf(&b, " There are %d open recommendations, the most urgent being %s (%s priority).",
			len(actions), actions[0].Kind, strings.ToLower(string(actions[0].Priority)))
	}

	return b.String()
}

func shortPubkey(pubkey string) string {
	if len(pubkey) <= 12 {
		return pubkey
	}
	return pubkey[:12] + "..."
}
