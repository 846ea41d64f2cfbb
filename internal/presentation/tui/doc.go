// Package tui holds the terminal niceties of the simulate command: the
// banner, markdown rendering of bot messages and TTY detection.
package tui
