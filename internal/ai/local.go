package ai

import (
	"context"
	"strings"
	"time"

	"pyx-backend/internal/model"
	"pyx-backend/internal/pagectx"
)

// LocalProvider answers from a fixed table and never touches the network.
type LocalProvider struct {
	delay time.Duration
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(delay time.Duration) *LocalProvider {
	return &LocalProvider{delay: delay}
}

func (p *LocalProvider) Name() string { return model.ProviderLocal }

type cannedAnswer struct {
	match       func(req *Request) bool
	content     string
	suggestions []string
}

// cannedAnswers is scanned in order; the last entry always matches.
var cannedAnswers = []cannedAnswer{
	{
		match: func(req *Request) bool {
			in := strings.ToLower(req.Input)
			return strings.Contains(in, "create") || strings.Contains(in, "build")
		},
		content: "Creating an agent on QAID takes four steps:\n\n" +
			"1. **Define the goal**: describe the task your agent should handle.\n" +
			"2. **Choose tools**: connect the APIs and data sources it needs.\n" +
			"3. **Configure behaviour**: set the prompt, tone and guardrails.\n" +
			"4. **Test and deploy**: try it in the sandbox, then publish it.\n\n" +
			"Open the Agent Builder whenever you're ready and I'll guide you through each step.",
		suggestions: []string{"Open Agent Builder", "Show agent templates", "How do I deploy an agent?", "View examples"},
	},
	{
		match: func(req *Request) bool { return req.Page == pagectx.Marketplace },
		content: "The marketplace lists agents built by QAID and the community. " +
			"Filter by category, sort by rating or usage, and open any agent to see its capabilities, pricing and reviews. " +
			"Tell me what you want to automate and I'll suggest a few matches.",
		suggestions: []string{"Show top rated agents", "Filter by category", "Compare agents", "How do I install an agent?"},
	},
	{
		match: func(*Request) bool { return true },
		content: "Hi! I'm PyX. I can help you discover agents in the marketplace, build your own, " +
			"or answer questions about the platform. What would you like to do?",
		suggestions: []string{"Browse the marketplace", "Build an agent", "Explain pricing", "Contact support"},
	},
}

// Generate waits for the configured delay, cut short if ctx ends, and
// always answers.
func (p *LocalProvider) Generate(ctx context.Context, req *Request) (*Completion, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	return localAnswer(req), nil
}

func localAnswer(req *Request) *Completion {
	for _, a := range cannedAnswers {
		if a.match(req) {
			return &Completion{
				Content:     a.content,
				Suggestions: append([]string(nil), a.suggestions...),
			}
		}
	}
	// unreachable: the last entry matches everything
	return &Completion{}
}
