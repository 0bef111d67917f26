package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/assistbot/bot/dialog"
	"github.com/m3rciful/assistbot/core/telegram/callbacks"
	"github.com/m3rciful/assistbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"
	"github.com/m3rciful/assistbot/core/telegram/keyboard"
	"github.com/m3rciful/assistbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

func (a *App) register() error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: a.handleStart, Description: "Show the main menu"}},
		{"/help", commands.Command{Handler: a.handleHelp, Description: "List commands"}},
		{"/menu", commands.Command{Handler: a.handleMenu, Description: "Change the menu layout"}},
		{"/crypto", commands.Command{
			Handler:     a.handleCrypto,
			Description: "Price of a coin, e.g. /crypto BTC",
			Aliases:     []string{"price"},
		}},
		{"/cancel", commands.Command{Handler: a.handleCancel, Description: "Cancel the pending question"}},
	}
	for _, c := range cmds {
		if err := a.registry.RegisterCommand(c.name, c.cmd); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	handlers := map[string]tele.HandlerFunc{
		cbCrypto:    a.selectHandler(dialog.SelectCrypto),
		cbAI:        a.selectHandler(dialog.SelectAI),
		cbKnowledge: a.selectHandler(dialog.SelectKnowledge),
		cbDate:      a.handleDate,
		cbLayout:    a.handleLayout,
		cbCancel:    a.handleCancel,
	}
	for key, h := range handlers {
		if err := a.registry.RegisterCallback(key, h); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	a.registry.SetTextFallback(a.handleText)
	return nil
}

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return a.sendMenu(ctx, c, a.texts.Welcome)
}

func (a *App) handleHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString(a.texts.Help)
	for _, cmd := range a.registry.ListCommands(true) {
		b.WriteString("\n" + cmd.Text + " - " + cmd.Description)
	}
	ctx := tghelpers.BuildContext(c)
	return a.sendMenu(ctx, c, b.String())
}

func (a *App) handleMenu(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	current := a.sessions.MenuLayout(ctx, tghelpers.UserID(c))
	return tghelpers.SendWithMarkup(c, a.texts.ChooseLayout, LayoutKeyboard(current))
}

// handleCrypto looks up "/crypto SYMBOL" directly; a bare "/crypto" arms the crypto mode.
func (a *App) handleCrypto(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := tghelpers.UserID(c)
	symbol := commandArgs(c.Text())
	if symbol == "" {
		return a.reply(ctx, c, a.dialog.Select(ctx, userID, dialog.SelectCrypto))
	}
	return a.reply(ctx, c, a.dialog.Lookup(ctx, userID, symbol))
}

func (a *App) handleCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	a.sessions.ClearMode(ctx, tghelpers.UserID(c))
	return a.sendMenu(ctx, c, a.texts.Cancelled)
}

func (a *App) selectHandler(ev dialog.Event) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		return a.reply(ctx, c, a.dialog.Select(ctx, tghelpers.UserID(c), ev))
	}
}

func (a *App) handleDate(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	day := tghelpers.FormatNextDay(a.now(), a.cfg.Menu.DateLayout)
	return a.sendMenu(ctx, c, fmt.Sprintf(a.texts.Tomorrow, day))
}

// handleLayout shows the layout picker or, with a payload, stores the chosen layout.
func (a *App) handleLayout(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := tghelpers.UserID(c)
	payload := callbacks.Payload(c)
	if payload == "" {
		current := a.sessions.MenuLayout(ctx, userID)
		return tghelpers.EditOrSendText(c, a.texts.ChooseLayout, LayoutKeyboard(current))
	}

	layout, ok := state.ParseLayout(payload)
	if !ok {
		return tghelpers.Notify(c, a.texts.Unsupported)
	}
	if err := a.sessions.SetMenuLayout(ctx, userID, layout); err != nil {
		return err
	}
	return tghelpers.EditOrSendText(c, a.texts.LayoutChanged, MenuKeyboard(layout))
}

func (a *App) handleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return a.reply(ctx, c, a.dialog.HandleText(ctx, tghelpers.UserID(c), c.Text()))
}

// reply sends a dialog reply: with the menu when asked, otherwise with a cancel button.
func (a *App) reply(ctx context.Context, c tele.Context, r dialog.Reply) error {
	if r.ShowMenu {
		return a.sendMenu(ctx, c, r.Text)
	}
	return tghelpers.SendWithMarkup(c, r.Text, keyboard.Cancel(cbCancel, ""))
}

func (a *App) sendMenu(ctx context.Context, c tele.Context, text string) error {
	layout := a.sessions.MenuLayout(ctx, tghelpers.UserID(c))
	return tghelpers.SendWithMarkup(c, text, MenuKeyboard(layout))
}

// commandArgs drops the leading "/command" word.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}
