package ai

import "regexp"

const maxSuggestions = 4

var suggestionTriggers = []struct {
	re   *regexp.Regexp
	chip string
}{
	{regexp.MustCompile(`(?i)create|build`), "Show me how to create an agent"},
	{regexp.MustCompile(`(?i)api|endpoint`), "Show API documentation"},
	{regexp.MustCompile(`(?i)example|demo`), "Show me an example"},
	{regexp.MustCompile(`(?i)tutorial|learn`), "Start a tutorial"},
}

// DefaultSuggestions is used when no trigger fires.
var DefaultSuggestions = []string{
	"Tell me more",
	"Browse the marketplace",
	"How do I get started?",
	"Contact support",
}

// SynthesizeSuggestions derives follow-up chips from a remote reply.
func SynthesizeSuggestions(content string) []string {
	out := make([]string, 0, maxSuggestions)
	for _, t := range suggestionTriggers {
		if len(out) == maxSuggestions {
			break
		}
		if t.re.MatchString(content) {
			out = append(out, t.chip)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultSuggestions...)
	}
	return out
}
