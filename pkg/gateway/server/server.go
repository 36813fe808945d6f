package server

import (
	"log/slog"
	"net/http"

	"github.com/aunorthrop/nora/pkg/gateway/config"
	"github.com/aunorthrop/nora/pkg/gateway/handlers"
	"github.com/aunorthrop/nora/pkg/gateway/mw"
	"github.com/aunorthrop/nora/pkg/gateway/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	provider upstream.Provider
}

func New(cfg config.Config, provider upstream.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		provider: provider,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})

	s.mux.Handle("/v1/chat", handlers.ChatHandler{
		Config:   s.cfg,
		Provider: s.provider,
		Logger:   s.logger,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
