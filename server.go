package main

import (
	"net/http"
	"time"

	"github.com/meinside/openai-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func newServer(conf config) (*Server, error) {
	if conf.Verbose {
		Log.SetLevel(log.DebugLevel)
	}

	client := openai.NewClient(conf.OpenAIAPIKey, conf.OpenAIOrganizationID)
	if conf.OpenAIBaseURL != "" {
		client.SetBaseURL(conf.OpenAIBaseURL)
	}
	client.Verbose = conf.Verbose

	server := &Server{
		conf:         conf,
		ai:           client,
		store:        newChatStore(),
		limiter:      newRateLimiter(conf.RateLimit, time.Minute),
		masterPrompt: conf.MasterPrompt,
	}

	if conf.DBPath != "" {
		db, err := openDB(conf.DBPath)
		if err != nil {
			return nil, err
		}
		server.db = db
	}

	return server, nil
}

func (s *Server) setupWebServer() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.corsMiddleware(s.handleHealth))
	mux.Handle("/metrics", promhttp.Handler())

	// API endpoints with CORS and rate-limit middleware
	mux.HandleFunc("/api/chat", s.corsMiddleware(s.rateLimitMiddleware(s.handleChat)))
	mux.HandleFunc("/api/regenerate", s.corsMiddleware(s.rateLimitMiddleware(s.handleRegenerate)))
	mux.HandleFunc("/api/image", s.corsMiddleware(s.rateLimitMiddleware(s.handleImage)))
	mux.HandleFunc("/api/system-prompt", s.corsMiddleware(s.rateLimitMiddleware(s.handleSystemPrompt)))
	mux.HandleFunc("/api/reset", s.corsMiddleware(s.rateLimitMiddleware(s.handleReset)))

	return mux
}

func (s *Server) run() error {
	mux := s.setupWebServer()
	addr := ":" + s.conf.ServerPort

	Log.WithField("addr", addr).Info("starting web server")

	return http.ListenAndServe(addr, metricsMiddleware(mux))
}

// systemPrompt returns the current process-wide instruction preface.
func (s *Server) systemPrompt() string {
	s.RLock()
	defer s.RUnlock()

	return s.masterPrompt
}

func (s *Server) setSystemPrompt(prompt string) {
	s.Lock()
	defer s.Unlock()
	s.masterPrompt = prompt
}
