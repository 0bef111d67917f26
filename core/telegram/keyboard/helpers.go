// Package keyboard builds inline keyboards in the shapes the menu supports.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button. Unique is the callback key, Data its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Shape arranges a flat list of buttons into rows.
type Shape int

const (
	// List puts every button on its own row.
	List Shape = iota
	// Grid packs buttons perRow to a row.
	Grid
	// Hybrid gives the first button a full row and packs the rest like Grid.
	Hybrid
)

// DefaultCancelText labels the cancel button.
const DefaultCancelText = "❌ Cancel"

// Inline arranges buttons in shape. perRow below 1 is treated as 1.
func Inline(shape Shape, perRow int, buttons ...Button) *tele.ReplyMarkup {
	switch shape {
	case Grid:
		return Rows(chunk(buttons, perRow)...)
	case Hybrid:
		if len(buttons) == 0 {
			return Rows()
		}
		return Rows(append([][]Button{buttons[:1]}, chunk(buttons[1:], perRow)...)...)
	default:
		return Rows(chunk(buttons, 1)...)
	}
}

// Rows builds an inline keyboard with the given rows as is.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		line := make([]tele.InlineButton, len(row))
		for j, b := range row {
			line[j] = *markup.Data(b.Text, b.Unique, b.Data).Inline()
		}
		markup.InlineKeyboard[i] = line
	}
	return markup
}

// Cancel returns a one-button keyboard that sends the unique callback key.
// An empty label uses DefaultCancelText.
func Cancel(unique, label string) *tele.ReplyMarkup {
	if label == "" {
		label = DefaultCancelText
	}
	return Rows([]Button{{Text: label, Unique: unique, Data: "cancel"}})
}

func chunk(buttons []Button, n int) [][]Button {
	n = max(n, 1)
	rows := make([][]Button, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		rows = append(rows, buttons[i:min(i+n, len(buttons))])
	}
	return rows
}
