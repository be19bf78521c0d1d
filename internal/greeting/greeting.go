// Package greeting builds the assistant's opening message for a page,
// personalised with the visitor's profile and preferences.
package greeting

import (
	"strings"

	"pyx-backend/internal/model"
	"pyx-backend/internal/pagectx"
)

type entry struct {
	text        string
	suggestions []string
}

var table = map[model.PageID]entry{
	pagectx.Home: {
		text:        "Hi, I'm PyX, your guide to the QAID agent marketplace. I can help you find, build and deploy AI agents.",
		suggestions: []string{"Browse the marketplace", "Build my first agent", "View examples", "How does pricing work?"},
	},
	pagectx.AgentBuilder: {
		text:        "Welcome to the Agent Builder. I can walk you through defining a goal, choosing tools and testing your agent.",
		suggestions: []string{"Start from a template", "Add a tool", "View examples", "Test my agent"},
	},
	pagectx.Marketplace: {
		text:        "Looking for the right agent? Tell me what you want to automate and I'll point you to the best matches.",
		suggestions: []string{"Show top rated agents", "Find an agent for support", "Compare agents", "View examples"},
	},
	pagectx.Analytics: {
		text:        "I can help you read your agent analytics: usage, success rates and cost trends.",
		suggestions: []string{"Explain this chart", "Show usage trends", "Export a report", "Set up alerts"},
	},
	pagectx.ActiveAgents: {
		text:        "Here you can monitor and manage your running agents. Ask me about status, logs or scaling.",
		suggestions: []string{"Why did my agent fail?", "Pause an agent", "View logs", "Scale an agent"},
	},
	pagectx.Dashboard: {
		text:        "Welcome back to your dashboard. Want a quick summary of what changed since your last visit?",
		suggestions: []string{"Summarise my activity", "Open Agent Builder", "Browse the marketplace", "View examples"},
	},
	pagectx.Documentation: {
		text:        "Searching the docs? Ask me anything about concepts, configuration or deployment.",
		suggestions: []string{"Getting started guide", "View examples", "Deployment options", "Security model"},
	},
	pagectx.APIDocs: {
		text:        "Need help with the API? I can explain endpoints, authentication and rate limits.",
		suggestions: []string{"How do I authenticate?", "List endpoints", "View examples", "Rate limits"},
	},
	pagectx.Pricing: {
		text:        "Questions about plans? I can compare tiers and estimate costs for your usage.",
		suggestions: []string{"Compare plans", "Estimate my cost", "Enterprise options", "Free tier limits"},
	},
	pagectx.HelpCenter: {
		text:        "How can I help? Describe the problem and I'll find the right article or contact for you.",
		suggestions: []string{"Account issues", "Billing questions", "Report a bug", "Contact support"},
	},
	pagectx.Support: {
		text:        "You've reached support. Tell me what's going wrong and I'll help troubleshoot.",
		suggestions: []string{"Report a bug", "Check service status", "Contact an engineer", "View examples"},
	},
	pagectx.Community: {
		text:        "Welcome to the community. I can point you to discussions, showcases and events.",
		suggestions: []string{"Popular discussions", "Share my agent", "Upcoming events", "View examples"},
	},
	pagectx.Blog: {
		text:        "Enjoying the blog? I can summarise posts or recommend related reading.",
		suggestions: []string{"Summarise this post", "Latest posts", "Related tutorials", "Subscribe"},
	},
	pagectx.Webinars: {
		text:        "Interested in a webinar? I can list upcoming sessions and recordings.",
		suggestions: []string{"Upcoming webinars", "Watch a recording", "Register", "View examples"},
	},
	pagectx.Careers: {
		text:        "Thinking about joining us? I can tell you about open roles and how we work.",
		suggestions: []string{"Open positions", "Engineering culture", "Benefits", "How to apply"},
	},
	pagectx.Default: {
		text:        "Hi, I'm PyX. Ask me anything about building, finding or running AI agents.",
		suggestions: []string{"What can you do?", "Browse the marketplace", "Build an agent", "View examples"},
	},
}

// StartTutorial is prepended to the suggestions when tutorials are enabled.
const StartTutorial = "Start tutorial"

// Build returns the greeting message for page. Its id is always
// model.GreetingID.
func Build(page model.PageID, profile model.UserProfile, prefs model.UserPreferences) model.Message {
	return model.Message{
		ID:          model.GreetingID,
		Role:        model.RoleAssistant,
		Content:     Text(page, profile, prefs),
		Suggestions: Suggestions(page, profile, prefs),
		Metadata:    &model.MessageMetadata{Mode: "greeting"},
	}
}

func lookup(page model.PageID) entry {
	if e, ok := table[page]; ok {
		return e
	}
	return table[pagectx.Default]
}

func Text(page model.PageID, profile model.UserProfile, prefs model.UserPreferences) string {
	var b strings.Builder
	b.WriteString(lookup(page).text)

	if profile.Role != "" {
		b.WriteString(" I'll tailor my answers for a ")
		b.WriteString(profile.Role)
		if profile.ExperienceLevel != "" {
			b.WriteString(" with ")
			b.WriteString(profile.ExperienceLevel)
			b.WriteString(" experience")
		}
		b.WriteString(".")
	}
	if len(profile.Interests) > 0 {
		b.WriteString(" I see you're interested in ")
		b.WriteString(strings.Join(profile.Interests, ", "))
		b.WriteString(".")
	}

	switch prefs.ResponseStyle {
	case model.StyleTechnical:
		b.WriteString(" I'll keep things technical.")
	case model.StyleDetailed:
		b.WriteString(" I'll give you detailed, step-by-step answers.")
	}
	return b.String()
}

// Suggestions personalises the page chips: developers get code examples,
// and tutorial fans get a tutorial entry point first.
func Suggestions(page model.PageID, profile model.UserProfile, prefs model.UserPreferences) []string {
	base := lookup(page).suggestions
	out := make([]string, 0, len(base)+1)
	if prefs.TutorialsEnabled {
		out = append(out, StartTutorial)
	}
	for _, s := range base {
		if isDeveloper(profile) && strings.Contains(s, "examples") && !strings.Contains(s, "code examples") {
			s = strings.Replace(s, "examples", "code examples", 1)
		}
		out = append(out, s)
	}
	return out
}

func isDeveloper(profile model.UserProfile) bool {
	return strings.EqualFold(strings.TrimSpace(profile.Role), "developer")
}
