package usecase

import (
	"regexp"
	"strings"

	"life-coach-agent/internal/domain"
)

const (
	tagNow            = "[NOW]"
	tagThen           = "[THEN]"
	tagSelectedOption = "[SELECTED_OPTION]"
)

var (
	nowPattern  = regexp.MustCompile(`\[NOW\] (.*)\n`)
	thenPattern = regexp.MustCompile(`\[THEN\] (.*)`)
)

func coachSystemPrompt() string {
	return strings.Join([]string{
		"You are a life coach and you can help users with their life problems. " +
			"You understand the user's options, research for them, calculate the best path forward, " +
			"estimate % based on the end goals, label the % on top of the options and help them make a decision.",
		"User will provide where they are and where they want to be.",
		"You will show me the options to choose from.",
		"Wait for " + tagSelectedOption + ". Do not proceed until a selected option is provided.",
	}, "\n")
}

// seedMessages opens a session. The user message is the only place now and
// then are kept; recoverSituation parses them back out.
func seedMessages(now, then string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: coachSystemPrompt()},
		{Role: domain.RoleUser, Content: tagNow + " " + now + "\n" + tagThen + " " + then},
	}
}

func selectionMessages(option string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleAssistant, Content: "Create a project name, project description and action items for the " + tagSelectedOption + "."},
		selectionRecord(option),
	}
}

func selectionRecord(option string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleUser, Content: tagSelectedOption + " " + option}
}

// recoverSituation scans user messages for the tagged now/then lines. Later
// matches win.
func recoverSituation(history []domain.ChatMessage) (now, then string, ok bool) {
	for _, m := range history {
		if m.Role != domain.RoleUser {
			continue
		}
		if match := nowPattern.FindStringSubmatch(m.Content); match != nil {
			now = match[1]
		}
		if match := thenPattern.FindStringSubmatch(m.Content); match != nil {
			then = match[1]
		}
	}
	return now, then, now != "" && then != ""
}

func containsTag(s string) bool {
	return strings.Contains(s, tagNow) || strings.Contains(s, tagThen) || strings.Contains(s, tagSelectedOption)
}
