// Package storage persists per-chat contact configuration.
//
// One SQLite row per chat id holds the contact (handle or user id + name),
// the notifier user id, a cached chat title and the paid flag. All writes
// are single-statement upserts so concurrent mutations of the same row
// cannot interleave per-field.
package storage
