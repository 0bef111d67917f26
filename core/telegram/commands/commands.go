// Package commands describes slash commands exposed by the bot.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a routed slash command. Aliases resolve to the same handler;
// a Hidden command is routed but never advertised in the command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}

// Valid reports whether the command can be registered.
func (c Command) Valid() bool {
	return c.Handler != nil && c.Description != ""
}

// MenuEntry returns the Telegram menu entry for c under name.
// ok is false for hidden commands.
func (c Command) MenuEntry(name string) (entry tele.Command, ok bool) {
	if c.Hidden {
		return tele.Command{}, false
	}
	return tele.Command{Text: name, Description: c.Description}, true
}
