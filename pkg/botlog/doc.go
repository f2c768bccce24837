// Package botlog holds the per-bot diagnostic log: a bounded ring buffer of
// timestamped entries that the API exposes as plain text, and the Logger
// value that bots and session engines write through.
package botlog
