package handlers

import (
	"github.com/avvvet/wordclash-services/internal/gamesvc/metrics"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(metrics.Middleware)

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/sessions", h.CreateSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", h.State)
				r.Get("/guesses", h.Guesses)
				r.Get("/rounds", h.Rounds)

				r.Post("/join", h.JoinTeam)
				r.Post("/start", h.StartMatch)
				r.Post("/guesses", h.SubmitGuess)
				r.Post("/advance", h.AdvanceRound)
				r.Post("/revive", h.ReviveTeam)
				r.Post("/leave", h.Leave)
				r.Post("/end", h.EndMatch)
				r.Post("/extend", h.ExtendTurn)
				r.Post("/timeout", h.HandleTimeout)
			})
		})
	})
}

// InitAuth sets the HS256 key tokens are verified with.
func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
}

func (h *Handler) TokenAuth() *jwtauth.JWTAuth {
	return h.tokenAuth
}
