// Package advisor recommends application templates for a chat message.
package advisor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"atlas-advisor-backend/internal/catalog"
	"atlas-advisor-backend/internal/envelope"
	"atlas-advisor-backend/internal/pipeline"
	"atlas-advisor-backend/internal/types"
)

// ChatHandler ranks templates for a message and asks the Completer to
// phrase the reply.
type ChatHandler struct {
	catalog   *catalog.Catalog
	completer Completer
	timeout   time.Duration
}

// NewChatHandler wires a handler. A zero timeout means the default 10s.
func NewChatHandler(c *catalog.Catalog, completer Completer, timeout time.Duration) *ChatHandler {
	if timeout <= 0 {
		timeout = pipeline.DefaultTimeout
	}
	return &ChatHandler{catalog: c, completer: completer, timeout: timeout}
}

func (h *ChatHandler) Handle(ctx context.Context, in types.ChatInput) pipeline.Result[types.ChatReply] {
	start := time.Now()
	recs := Rank(in.Message, h.catalog.Templates(), MaxRecommendations)
	prompt := Prompt{
		Message:          in.Message,
		Candidates:       recs,
		SelectedDatasets: in.SelectedDatasets,
		Starter:          isStarter(recs),
	}

	comp, err := pipeline.Bounded(ctx, h.timeout, func(ctx context.Context) (Completion, error) {
		return h.completer.Complete(ctx, prompt)
	})
	if err != nil {
		return pipeline.FromError[types.ChatReply](err)
	}
	content := strings.TrimSpace(comp.Text)
	if content == "" {
		content = Summarize(prompt)
	}

	return pipeline.Ok(types.ChatReply{
		MessageID:        uuid.NewString(),
		Role:             "assistant",
		Content:          content,
		Timestamp:        envelope.Timestamp(envelope.Now()),
		SessionID:        in.SessionID,
		Recommendations:  recs,
		SuggestedActions: suggestedActions(recs),
		Metadata: types.ReplyMetadata{
			TokensUsed: comp.TokensUsed,
			Latency:    time.Since(start).Milliseconds(),
			Model:      comp.Model,
		},
	})
}

func isStarter(recs []types.Recommendation) bool {
	for _, r := range recs {
		if r.Score != StarterScore || len(r.MatchedFeatures) > 0 {
			return false
		}
	}
	return len(recs) > 0
}

func suggestedActions(recs []types.Recommendation) []types.SuggestedAction {
	var out []types.SuggestedAction
	if len(recs) > 0 {
		out = append(out, types.SuggestedAction{Type: "preview", Label: "Preview " + recs[0].App.Name, Target: recs[0].App.ID})
	}
	if len(recs) > 1 {
		out = append(out, types.SuggestedAction{Type: "compare", Label: "Compare these apps"})
	}
	out = append(out,
		types.SuggestedAction{Type: "search-datasets", Label: "Find data for your map"},
		types.SuggestedAction{Type: "browse", Label: "Browse all apps"},
	)
	return out
}
