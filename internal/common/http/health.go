package http

import (
	"net/http"
)

type StatsProvider interface {
	Stats() map[string]int
}

func HealthHandler(stats StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}
		body := map[string]any{"status": "ok"}
		if stats != nil {
			body["stats"] = stats.Stats()
		}
		WriteJSON(w, http.StatusOK, body)
	}
}
