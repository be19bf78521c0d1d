// Package recommend ranks marketplace agents against a visitor profile.
package recommend

import (
	"math"
	"sort"
	"strings"

	"pyx-backend/internal/model"
)

type Agent struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Level       string   `json:"level"`
	Rating      float64  `json:"rating"`
	Users       int      `json:"users"`
}

type Recommendation struct {
	Agent  Agent   `json:"agent"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

var catalog = []Agent{
	{
		ID:          "support-bot",
		Name:        "Customer Support Bot",
		Description: "Answers common customer questions and escalates the rest.",
		Tags:        []string{"support", "automation", "chat"},
		Level:       "beginner",
		Rating:      4.6,
		Users:       12500,
	},
	{
		ID:          "data-analyst",
		Name:        "Data Analyst",
		Description: "Explores datasets and summarizes trends in plain language.",
		Tags:        []string{"analytics", "data", "reporting"},
		Level:       "intermediate",
		Rating:      4.8,
		Users:       8300,
	},
	{
		ID:          "code-reviewer",
		Name:        "Code Reviewer",
		Description: "Reviews pull requests and flags bugs and style issues.",
		Tags:        []string{"development", "api", "code"},
		Level:       "advanced",
		Rating:      4.4,
		Users:       5100,
	},
}

type Engine struct {
	agents   []Agent
	maxUsers int
}

// NewEngine ranks the built-in catalog.
func NewEngine() *Engine {
	return NewEngineWithAgents(catalog)
}

func NewEngineWithAgents(agents []Agent) *Engine {
	e := &Engine{agents: append([]Agent(nil), agents...)}
	for _, a := range agents {
		if a.Users > e.maxUsers {
			e.maxUsers = a.Users
		}
	}
	return e
}

// Recommend returns up to limit agents, best first. A non-positive limit
// returns every agent.
func (e *Engine) Recommend(profile model.UserProfile, limit int) []Recommendation {
	out := make([]Recommendation, 0, len(e.agents))
	for _, a := range e.agents {
		score, reason := e.score(a, profile)
		out = append(out, Recommendation{Agent: a, Score: score, Reason: reason})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Agent.Name < out[j].Agent.Name
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (e *Engine) score(a Agent, profile model.UserProfile) (float64, string) {
	overlap, matched := interestOverlap(a.Tags, profile.Interests)

	score := 0.5*overlap + 0.3*(a.Rating/5)
	if e.maxUsers > 0 {
		score += 0.2 * float64(a.Users) / float64(e.maxUsers)
	}
	levelMatch := profile.ExperienceLevel != "" && strings.EqualFold(profile.ExperienceLevel, a.Level)
	if levelMatch {
		score += 0.1
	}
	score = math.Min(score, 1)
	score = math.Round(score*1000) / 1000

	var reason string
	switch {
	case len(matched) > 0:
		reason = "Matches your interest in " + strings.Join(matched, ", ")
	case levelMatch:
		reason = "Suited to " + a.Level + " users"
	default:
		reason = "Popular in the marketplace"
	}
	return score, reason
}

// interestOverlap is the share of the agent's tags that the visitor lists
// as interests.
func interestOverlap(tags, interests []string) (float64, []string) {
	if len(tags) == 0 || len(interests) == 0 {
		return 0, nil
	}
	want := make(map[string]bool, len(interests))
	for _, i := range interests {
		want[strings.ToLower(strings.TrimSpace(i))] = true
	}
	var matched []string
	for _, t := range tags {
		if want[strings.ToLower(t)] {
			matched = append(matched, t)
		}
	}
	return float64(len(matched)) / float64(len(tags)), matched
}
