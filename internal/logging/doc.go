// Package logging builds the process logger.
//
// Format "json" selects slog's JSON handler. Anything else selects a compact
// colorized text handler meant for terminals; colors follow fatih/color and
// switch off when the output is not a TTY or NO_COLOR is set.
package logging
