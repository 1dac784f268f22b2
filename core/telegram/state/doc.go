// Package state keeps one dialogue session per Telegram user. Stores hold
// the records; Manager serializes access to each user's record.
package state
