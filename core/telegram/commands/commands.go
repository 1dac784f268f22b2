package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command describes a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Usage is the argument hint shown in help, e.g. "<url>".
	Usage     string
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}
