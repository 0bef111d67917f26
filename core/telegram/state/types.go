package state

import (
	"strconv"
	"strings"
)

// Mode is the pending input mode of a user. It is consumed by the next text message.
type Mode string

const (
	// ModeNone means the next text message is not routed anywhere.
	ModeNone Mode = "none"
	// ModeCrypto means the next text message is a coin symbol or id.
	ModeCrypto Mode = "crypto"
	// ModeAI means the next text message is a free-form question.
	ModeAI Mode = "ai"
)

// ParseMode maps a stored value to a Mode. Unknown values map to ModeNone.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.TrimSpace(raw)) {
	case ModeCrypto:
		return ModeCrypto, true
	case ModeAI:
		return ModeAI, true
	case ModeNone:
		return ModeNone, true
	}
	return ModeNone, false
}

// Layout is the preferred arrangement of menu buttons.
type Layout string

const (
	// LayoutGrid places two buttons per row.
	LayoutGrid Layout = "grid"
	// LayoutList places one button per row.
	LayoutList Layout = "list"
	// LayoutHybrid places the first button on its own row and the rest two per row.
	LayoutHybrid Layout = "hybrid"
)

// Layouts lists every supported layout in display order.
var Layouts = []Layout{LayoutGrid, LayoutList, LayoutHybrid}

// ParseLayout maps a stored value to a Layout. Unknown values map to LayoutGrid.
func ParseLayout(raw string) (Layout, bool) {
	switch Layout(strings.ToLower(strings.TrimSpace(raw))) {
	case LayoutGrid:
		return LayoutGrid, true
	case LayoutList:
		return LayoutList, true
	case LayoutHybrid:
		return LayoutHybrid, true
	}
	return LayoutGrid, false
}

func modeKey(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10) + ":mode"
}

func layoutKey(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10) + ":menu"
}
