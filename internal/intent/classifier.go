// Package intent scores a free-text message against a fixed table of
// weighted keyword sets and extracts simple entities from it.
package intent

import (
	"strings"
)

const (
	General          = "general"
	Question         = "question"
	RequestHelp      = "request_help"
	CreateAgent      = "create_agent"
	FindAgent        = "find_agent"
	TechnicalSupport = "technical_support"
	TutorialRequest  = "tutorial_request"
	APIHelp          = "api_help"
)

// DefaultConfidence is the score a candidate intent must strictly beat.
const DefaultConfidence = 0.5

type Entity struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type Result struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
}

// Entity returns the values extracted for typ, or nil.
func (r Result) Entity(typ string) []string {
	for _, e := range r.Entities {
		if e.Type == typ {
			return e.Values
		}
	}
	return nil
}

type rule struct {
	intent   string
	weight   float64
	keywords []string
}

// rules is evaluated in order. Ties keep the earlier intent.
var rules = []rule{
	{Question, 1.0, []string{"what", "how", "why", "when", "where", "?"}},
	{RequestHelp, 1.2, []string{"help", "assist", "support", "stuck", "problem"}},
	{CreateAgent, 1.5, []string{"create", "build", "make", "agent", "design"}},
	{FindAgent, 1.2, []string{"find", "search", "browse", "marketplace", "discover"}},
	{TechnicalSupport, 1.3, []string{"error", "bug", "broken", "issue", "crash", "not working"}},
	{TutorialRequest, 1.1, []string{"tutorial", "learn", "guide", "walkthrough", "example"}},
	{APIHelp, 1.3, []string{"api", "endpoint", "sdk", "integration", "webhook", "authentication"}},
}

// Intents lists the classifiable intents in evaluation order.
func Intents() []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.intent)
	}
	return out
}

// Classify is pure and total: every input, including the empty string,
// yields a result.
func Classify(message string) Result {
	lower := strings.ToLower(message)

	best := Result{Intent: General, Confidence: DefaultConfidence}
	for _, r := range rules {
		score := r.score(lower)
		if score > best.Confidence {
			best.Intent = r.intent
			best.Confidence = score
		}
	}

	best.Entities = ExtractEntities(message)
	return best
}

func (r rule) score(lower string) float64 {
	matched := 0
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	score := r.weight * float64(matched) / float64(len(r.keywords))
	if score > 1.0 {
		score = 1.0
	}
	return score
}
