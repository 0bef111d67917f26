package app

import (
	"github.com/m3rciful/assistbot/core/telegram/keyboard"
	"github.com/m3rciful/assistbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Callback keys carried by inline buttons.
const (
	cbCrypto    = "crypto"
	cbAI        = "ai"
	cbKnowledge = "knowledge"
	cbDate      = "date"
	cbLayout    = "layout"
	cbCancel    = "cancel"
)

// Texts are the replies produced outside the dialog router.
type Texts struct {
	Welcome        string
	Help           string
	ChooseLayout   string
	LayoutChanged  string
	Cancelled      string
	Tomorrow       string
	UnknownCommand string
	UnknownText    string
	NotText        string
	Unsupported    string
	SlowDown       string
	Failure        string
}

// DefaultTexts returns the stock English texts.
func DefaultTexts() Texts {
	return Texts{
		Welcome:        "Hi! I can look up crypto prices and answer questions. Pick an option:",
		Help:           "Use the menu buttons or these commands:",
		ChooseLayout:   "Choose how the menu is laid out:",
		LayoutChanged:  "Menu layout updated. Pick an option:",
		Cancelled:      "Cancelled. Pick an option:",
		Tomorrow:       "Tomorrow is %s.",
		UnknownCommand: "Unknown command. Send /help to see what I can do.",
		UnknownText:    "Please choose an option from the menu first.",
		NotText:        "I can only read text messages.",
		Unsupported:    "This button is no longer supported.",
		SlowDown:       "Too many requests, slow down a little.",
		Failure:        "An error occurred. Please try again later.",
	}
}

func menuButtons() []keyboard.Button {
	return []keyboard.Button{
		{Text: "💰 Crypto Price", Unique: cbCrypto},
		{Text: "🤖 AI Assistant", Unique: cbAI},
		{Text: "📚 General Knowledge", Unique: cbKnowledge},
		{Text: "📅 Date Help", Unique: cbDate},
		{Text: "⚙️ Menu Layout", Unique: cbLayout},
	}
}

// MenuKeyboard renders the main menu in the given layout.
func MenuKeyboard(layout state.Layout) *tele.ReplyMarkup {
	shape := keyboard.Grid
	switch layout {
	case state.LayoutList:
		shape = keyboard.List
	case state.LayoutHybrid:
		shape = keyboard.Hybrid
	}
	return keyboard.Inline(shape, 2, menuButtons()...)
}

// LayoutKeyboard lists the menu layouts, marking the current one.
func LayoutKeyboard(current state.Layout) *tele.ReplyMarkup {
	btns := make([]keyboard.Button, 0, len(state.Layouts))
	for _, l := range state.Layouts {
		label := layoutLabel(l)
		if l == current {
			label = "✅ " + label
		}
		btns = append(btns, keyboard.Button{Text: label, Unique: cbLayout, Data: string(l)})
	}
	return keyboard.Inline(keyboard.List, 1, btns...)
}

func layoutLabel(l state.Layout) string {
	switch l {
	case state.LayoutList:
		return "List"
	case state.LayoutHybrid:
		return "Hybrid"
	default:
		return "Grid"
	}
}
