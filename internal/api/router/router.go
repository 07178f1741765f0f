package router

import (
	"net/http"

	"godigital/internal/api/upload"
)

// NewRouter configura e retorna o roteador HTTP principal.
// rateLimit envolve apenas a rota de gravação; metrics é servido em /metrics.
func NewRouter(uploadHandler *upload.Handler, rateLimit func(http.Handler) http.Handler, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", PingHandler)
	mux.Handle("GET /metrics", metrics)

	mux.Handle("POST /v1/digital-products", rateLimit(http.HandlerFunc(uploadHandler.SaveProductHandler)))
	mux.HandleFunc("GET /v1/digital-products/{id}", uploadHandler.GetProductByIDHandler)

	return mux
}

// PingHandler é o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
