package routes

import (
	"github.com/avvvet/wordclash-services/internal/socketsvc/handlers"
	"github.com/avvvet/wordclash-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func SetRoutes(r *chi.Mux, ws *ws.Ws, secret, port string) {
	tokenAuth := jwtauth.New("HS256", []byte(secret), nil)
	h := handlers.NewHandler(ws, tokenAuth, port)
	r.Route("/v1", func(r chi.Router) {
		// the socket checks its own token, browsers cannot set headers on upgrade
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
