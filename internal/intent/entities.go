package intent

import "regexp"

const (
	EntityFile   = "file"
	EntityNumber = "number"
	EntityURL    = "url"
)

var entityPatterns = []struct {
	typ string
	re  *regexp.Regexp
}{
	{EntityFile, regexp.MustCompile(`(?i)\b[\w-]+\.(?:js|jsx|ts|tsx|py|go|java|json|ya?ml|md|txt|csv|pdf|html|css)\b`)},
	{EntityNumber, regexp.MustCompile(`\b\d+\b`)},
	{EntityURL, regexp.MustCompile(`https?://[^\s]+`)},
}

// ExtractEntities returns at most one group per entity type, in the order
// file, number, url. Types with no matches are omitted.
func ExtractEntities(message string) []Entity {
	entities := make([]Entity, 0, len(entityPatterns))
	for _, p := range entityPatterns {
		matches := p.re.FindAllString(message, -1)
		if len(matches) == 0 {
			continue
		}
		entities = append(entities, Entity{Type: p.typ, Values: matches})
	}
	return entities
}
