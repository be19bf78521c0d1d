package conversation

import "strings"

// topicVocabulary is matched as case-insensitive substrings of user text.
var topicVocabulary = []string{
	"agent",
	"marketplace",
	"api",
	"pricing",
	"integration",
	"workflow",
	"analytics",
	"tutorial",
	"deployment",
	"security",
	"billing",
	"support",
}

// ExtractTopics returns the vocabulary entries found in text, in
// vocabulary order.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, topic := range topicVocabulary {
		if strings.Contains(lower, topic) {
			found = append(found, topic)
		}
	}
	return found
}

// mergeTopics appends the entries of add that are not already in set.
func mergeTopics(set []string, add []string) []string {
	for _, t := range add {
		if !contains(set, t) {
			set = append(set, t)
		}
	}
	return set
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
