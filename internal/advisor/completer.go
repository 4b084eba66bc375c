package advisor

import (
	"context"
	"fmt"
	"strings"

	"atlas-advisor-backend/internal/types"
)

// Prompt is everything a completion provider needs to write a reply.
type Prompt struct {
	Message          string
	Candidates       []types.Recommendation
	SelectedDatasets []string
	Starter          bool // candidates are the fallback starter set
}

type Completion struct {
	Text       string
	TokensUsed int
	Model      string
}

// Completer writes the assistant's reply. Implementations report failures
// as errors; the pipeline classifies them.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
}

// StaticCompleter answers from a template without any network call.
type StaticCompleter struct{}

const staticModel = "static-template"

func (StaticCompleter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	text := Summarize(p)
	return Completion{
		Text:       text,
		TokensUsed: len(strings.Fields(p.Message)) + len(strings.Fields(text)),
		Model:      staticModel,
	}, nil
}

// Summarize renders the candidate list as a short conversational reply.
func Summarize(p Prompt) string {
	var b strings.Builder
	if len(p.Candidates) == 0 {
		return "I couldn't find a template for that yet. You can browse all apps to compare them side by side."
	}
	top := p.Candidates[0]
	if p.Starter {
		fmt.Fprintf(&b, "I'm not sure yet which template fits best. %s is a good place to start", top.App.Name)
	} else {
		fmt.Fprintf(&b, "Based on what you described, I'd start with %s (%s confidence)", top.App.Name, top.Confidence)
	}
	b.WriteString(". ")
	b.WriteString(top.App.Description)
	if len(p.Candidates) > 1 {
		names := make([]string, 0, len(p.Candidates)-1)
		for _, c := range p.Candidates[1:] {
			names = append(names, c.App.Name)
		}
		fmt.Fprintf(&b, " You could also look at %s.", strings.Join(names, " or "))
	}
	if len(p.SelectedDatasets) > 0 {
		fmt.Fprintf(&b, " I'll keep your %d selected dataset(s) in mind when you preview.", len(p.SelectedDatasets))
	}
	return b.String()
}
