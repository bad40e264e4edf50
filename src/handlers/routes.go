package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/brokerbridge/src/logger"
)

// NewRouter registers every API route. Everything except the health check
// requires a bearer token.
func NewRouter(auth *AuthHandler, brokers *BrokerHandler, holdings *HoldingsHandler) http.Handler {
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	protect := func(handler http.HandlerFunc) http.Handler {
		return auth.AuthMiddleware(handler)
	}

	apiRouter.HandleFunc("GET /api/health", HandleHealth)

	apiRouter.Handle("POST /api/brokers/{broker}/login", protect(brokers.HandleLogin))
	apiRouter.Handle("POST /api/brokers/{broker}/otp", protect(brokers.HandleOTP))
	apiRouter.Handle("POST /api/brokers/{broker}/sync", protect(brokers.HandleSync))
	apiRouter.Handle("POST /api/brokers/{broker}/import", protect(brokers.HandleImport))
	apiRouter.Handle("GET /api/brokers/{broker}/status", protect(brokers.HandleStatus))

	apiRouter.Handle("GET /api/holdings/equity", protect(holdings.HandleGetEquityHoldings))
	apiRouter.Handle("GET /api/holdings/mutual-funds", protect(holdings.HandleGetMutualFundHoldings))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "brokerbridge is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
		}
		http.NotFound(w, r)
	})

	return rootMux
}
