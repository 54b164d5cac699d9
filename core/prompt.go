package core

import (
	"strings"
	"time"
)

func buildPrompt(now time.Time, role string, history []string, message string) string {
	var sb strings.Builder
	sb.WriteString("Current Time: " + now.Format("2006-01-02 15:04:05") + "\n")
	sb.WriteString("Role:\n" + role + "\n")
	sb.WriteString("Chat History:\n" + strings.Join(history, "\n") + "\n")
	sb.WriteString("User Message:\n" + message)
	return sb.String()
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
