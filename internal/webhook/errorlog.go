package webhook

import (
	"log"
	"log/slog"

	"github.com/codex-k8s/ticketlint/internal/logging"
)

func newErrorLog(logger *slog.Logger) *log.Logger {
	return log.New(logging.NewWriter(logger, "http server"), "", 0)
}
