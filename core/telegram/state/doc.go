// Package state keeps per-user conversation state for Telegram bots: the
// pending single-shot input mode and the preferred menu layout.
//
// Nothing is held in process; every read and write goes to a kv.Store so
// the state survives restarts and is shared by every bot process.
package state
