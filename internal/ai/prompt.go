package ai

import (
	"fmt"
	"strings"

	"pyx-backend/internal/model"
)

type turn struct {
	role    model.Role
	content string
}

// systemPreamble describes who the assistant is and who it is talking to.
func systemPreamble(req *Request) string {
	var b strings.Builder
	b.WriteString("You are PyX, the assistant of the QAID AI agent marketplace. ")
	b.WriteString("Help visitors find, build and run AI agents. Answer in markdown.\n")
	fmt.Fprintf(&b, "Current page: %s\n", req.Page)

	p := req.Profile
	if p.Role != "" {
		fmt.Fprintf(&b, "Visitor role: %s\n", p.Role)
	}
	if p.ExperienceLevel != "" {
		fmt.Fprintf(&b, "Experience level: %s\n", p.ExperienceLevel)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	if len(p.Goals) > 0 {
		fmt.Fprintf(&b, "Goals: %s\n", strings.Join(p.Goals, ", "))
	}

	prefs := req.Preferences
	if prefs.ResponseStyle != "" {
		fmt.Fprintf(&b, "Response style: %s\n", prefs.ResponseStyle)
	}
	if prefs.Language != "" {
		fmt.Fprintf(&b, "Reply in language: %s\n", prefs.Language)
	}
	if prefs.ShowCodeExamples {
		b.WriteString("Include short code examples when they help.\n")
	} else {
		b.WriteString("Avoid code examples unless asked.\n")
	}
	return b.String()
}

// buildTurns lays out the system preamble, the last historyTurns messages
// and the new input. System messages in history are dropped.
func buildTurns(req *Request, historyTurns int) []turn {
	history := req.History
	if historyTurns > 0 && len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}

	turns := make([]turn, 0, len(history)+2)
	turns = append(turns, turn{role: model.RoleSystem, content: systemPreamble(req)})
	for _, m := range history {
		if m.Role == model.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, turn{role: m.Role, content: m.Content})
	}
	turns = append(turns, turn{role: model.RoleUser, content: req.Input})
	return turns
}
