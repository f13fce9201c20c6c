// Package ghoutput emits GitHub Actions step outputs and workflow commands.
package ghoutput

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// WriteFile appends step outputs to path (GITHUB_OUTPUT). An empty path is a no-op.
// Multi-line values use the heredoc form with a random delimiter.
func WriteFile(path string, values map[string]string) error {
	if path == "" || len(values) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open step outputs: %w", err)
	}
	defer func() { _ = f.Close() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := values[key]
		if !strings.ContainsAny(value, "\r\n") {
			if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
				return fmt.Errorf("write output %s: %w", key, err)
			}
			continue
		}
		delim, err := delimiter()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", key, delim, value, delim); err != nil {
			return fmt.Errorf("write output %s: %w", key, err)
		}
	}
	return nil
}

// Error prints an ::error:: workflow command so the message is shown as an annotation.
func Error(w io.Writer, msg string) {
	_, _ = fmt.Fprintf(w, "::error::%s\n", escapeData(msg))
}

func escapeData(value string) string {
	value = strings.ReplaceAll(value, "%", "%25")
	value = strings.ReplaceAll(value, "\r", "%0D")
	value = strings.ReplaceAll(value, "\n", "%0A")
	return value
}

func delimiter() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("output delimiter: %w", err)
	}
	return "ghadelimiter_" + hex.EncodeToString(b[:]), nil
}
