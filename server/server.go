package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soyart/explorer-web/loader"
	"github.com/soyart/explorer-web/nodefetch"
	"github.com/soyart/explorer-web/prefs"
)

const shutdownTimeout = 5 * time.Second

// Server serves page view-data and the user's preferences over HTTP.
type Server struct {
	router   chi.Router
	loader   *loader.Loader
	prefs    *prefs.Preferences
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(l *loader.Loader, p *prefs.Preferences, logger *zap.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		loader: l,
		prefs:  p,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", nodefetch.HeaderNodeAddress},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(RelayNodeAddress)
	r.Use(RequestOrigin)
	r.Use(requestLogger(s.logger))

	r.Get("/", s.handleBlocks)
	r.Get("/transaction/{hash}", s.handleTransaction)
	r.Get("/entries", s.handleEntries)

	r.Get("/preferences", s.handleGetPreferences)
	r.Put("/preferences", s.handlePutPreferences)
	r.Get("/preferences/ws", s.handlePreferencesWS)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("address", addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return errors.Wrapf(err, "failed to serve on %s", addr)

	case <-ctx.Done():
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "failed to shut down server")
		}

		return nil
	}
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	page := loader.BlocksPage(s.logger, s.loader.Blocks(r.Context()))
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	page := loader.TransactionPage(s.logger, s.loader.Transaction(r.Context(), hash))
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries := loader.EntryList(s.logger, s.loader.Entries(r.Context()))
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.prefs.Snapshot())
}

type preferencesUpdate struct {
	NodeAddress    *string `json:"nodeAddress"`
	NumberOfBlocks *int    `json:"numberOfBlocks"`
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var update preferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("failed to decode preferences update", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.prefs.Update(ctx, update.NodeAddress, update.NumberOfBlocks); err != nil {
		if errors.Is(err, prefs.ErrInvalidValue) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.logger.Error("failed to update preferences", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, s.prefs.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}
