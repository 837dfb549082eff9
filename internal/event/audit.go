package event

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// AuditHandler returns a Handler that writes each event to logger as one
// record. Events whose type ends in ".failed" are logged at Warn.
func AuditHandler(logger *slog.Logger) Handler {
	logger = logger.With(slog.String("component", "audit"))
	return func(e Event) {
		attrs := make([]any, 0, len(e.Data)+1)
		attrs = append(attrs, slog.String("event", string(e.Type)))
		for _, k := range slices.Sorted(maps.Keys(e.Data)) {
			attrs = append(attrs, slog.Any(k, e.Data[k]))
		}
		if strings.HasSuffix(string(e.Type), ".failed") {
			logger.Warn("audit", attrs...)
			return
		}
		logger.Info("audit", attrs...)
	}
}
