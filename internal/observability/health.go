package observability

import (
	"net/http"
)

// PingHandler answers liveness checks. The serving contract expects a bare
// 200 with a plain body; no backend state is consulted.
func PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Healthy"))
	}
}
