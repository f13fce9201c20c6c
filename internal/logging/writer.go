package logging

import (
	"log/slog"
	"strings"
)

// Writer is an io.Writer that forwards line-oriented output (e.g. http.Server.ErrorLog) to slog.
type Writer struct {
	logger *slog.Logger
	msg    string
}

// NewWriter constructs a Writer logging each line at warn level under msg.
func NewWriter(logger *slog.Logger, msg string) *Writer {
	return &Writer{logger: logger, msg: msg}
}

// Write logs the given bytes as a single line.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger != nil {
		line := strings.TrimRight(string(p), "\n")
		if line != "" {
			w.logger.Warn(w.msg, "line", line)
		}
	}
	return len(p), nil
}
