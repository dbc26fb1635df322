package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/pantrytracker/internal/apperr"
)

// HouseholdResolver returns the household of the authenticated caller.
type HouseholdResolver interface {
	CurrentHouseholdID(ctx context.Context) (int64, error)
}

// Handle upgrades authenticated requests and subscribes them to the caller's
// household. originPattern, when set, restricts cross-origin upgrades to the
// configured frontend origin.
func Handle(hub *Hub, households HouseholdResolver, originPattern string, logger *slog.Logger) http.HandlerFunc {
	opts := &ws.AcceptOptions{}
	if originPattern != "" {
		host := originPattern
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		opts.OriginPatterns = []string{host}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		hid, err := households.CurrentHouseholdID(r.Context())
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(apperr.Status(err))
			json.NewEncoder(w).Encode(map[string]string{"error": apperr.Message(err)})
			return
		}

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, hid).Run(r.Context())
	}
}
