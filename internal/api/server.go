// Package api exposes the governance core over HTTP: read-only state
// queries, mutation endpoints that route through the coordinator, and an SSE
// feed bridging the notification bus.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rossicka/imperium/internal/engine"
	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/options"
	"github.com/rossicka/imperium/internal/taxation"
	"github.com/rossicka/imperium/internal/territory"
	"github.com/rossicka/imperium/internal/war"
)

// Server serves the governance state over HTTP.
type Server struct {
	Coord    *engine.Coordinator
	Factions *faction.Registry
	Areas    *territory.Registry
	Wars     *war.Registry
	Tax      *taxation.Engine
	Bus      *events.Bus
	Opts     *options.Options
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	cooldown := NewCooldown(time.Duration(s.Opts.CommandCooldownSeconds) * time.Second)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/events", s.handleEvents)

		r.Get("/factions", s.handleListFactions)
		r.Get("/factions/{id}", s.handleGetFaction)
		r.Get("/factions/{id}/policies", s.handleFactionPolicies)

		r.Get("/areas", s.handleListAreas)
		r.Get("/areas/{id}", s.handleGetArea)
		r.Get("/areas/{id}/policies", s.handleAreaPolicies)
		r.Get("/towns", s.handleListTowns)

		r.Get("/wars", s.handleListWars)
		r.Get("/wars/active", s.handleListActiveWars)

		// Mutations ride the in-game command cooldown.
		r.Group(func(r chi.Router) {
			r.Use(CooldownMiddleware(cooldown))

			r.Post("/factions", s.handleCreateFaction)
			r.Delete("/factions/{id}", s.handleDisbandFaction)
			r.Post("/factions/{id}/members", s.handleAddMember)
			r.Delete("/factions/{id}/members/{userID}", s.handleRemoveMember)
			r.Put("/factions/{id}/tax-rate", s.handleSetTaxRate)
			r.Put("/factions/{id}/tax-chest", s.handleSetTaxChest)
			r.Post("/factions/{id}/deposit", s.handleDeposit)

			r.Post("/areas/{id}/claim", s.handleClaim)
			r.Post("/areas/unclaim", s.handleUnclaim)
			r.Post("/areas/{id}/town", s.handleMarkTown)
			r.Delete("/areas/{id}/town", s.handleRemoveTown)

			r.Post("/wars", s.handleDeclareWar)
			r.Post("/wars/end", s.handleEndWar)

			r.Post("/tax/gather", s.handleGather)
		})
	})

	return r
}

// ListenAndServe runs the HTTP server until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP API starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents streams the notification bus as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := s.Bus.Subscribe()
	defer s.Bus.Unsubscribe(ch)

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, flusher, ev)
		case <-ping.C:
			writePing(w, flusher)
		}
	}
}
