// Package www is the HTTP control surface: recipe and camera control,
// status, and the live result stream over SSE and websocket.
package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"remy/llm"
	"remy/pipeline"
)

// Pipeline is the part of *pipeline.Controller the server drives.
type Pipeline interface {
	Start(ctx context.Context, systemPrompt string) error
	Stop() bool
	SetCurrentStep(step string)
	SetCurrentRecipe(name string, steps []string)
	Status() pipeline.Status
	Level() float64
}

type Server struct {
	// base outlives requests; runs started over HTTP hang off it.
	base      context.Context
	pipeline  Pipeline
	hub       *Hub
	cautioner llm.Cautioner
	router    chi.Router
	log       *log.Logger
}

// NewServer builds the router. cautioner may be nil, in which case
// /step/caution answers 501.
func NewServer(base context.Context, p Pipeline, hub *Hub, cautioner llm.Cautioner, logger *log.Logger) *Server {
	s := &Server{
		base:      base,
		pipeline:  p,
		hub:       hub,
		cautioner: cautioner,
		log:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/recipe", s.handleSetRecipe)
	r.Post("/recipe/set-step", s.handleSetStep)
	r.Post("/camera/start", s.handleStart)
	r.Post("/camera/stop", s.handleStop)
	r.Get("/status", s.handleStatus)
	r.Get("/level", s.handleLevel)
	r.Get("/step/caution", s.handleCaution)
	r.Get("/stream", s.handleStream)
	r.Get("/ws", s.handleWebsocket)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	s.log.Info("http", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type recipeRequest struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}

type stepRequest struct {
	Step string `json:"step"`
}

type startRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Step    string `json:"step,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

func (s *Server) handleSetRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid recipe", http.StatusBadRequest)
		return
	}
	s.pipeline.SetCurrentRecipe(req.Name, req.Steps)
	s.writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleSetStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid step", http.StatusBadRequest)
		return
	}
	s.pipeline.SetCurrentStep(req.Step)
	s.writeJSON(w, http.StatusOK, okResponse{OK: true, Step: req.Step})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	// the body is optional
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid start request", http.StatusBadRequest)
			return
		}
	}

	err := s.pipeline.Start(s.base, req.SystemPrompt)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		s.writeJSON(w, http.StatusOK, okResponse{OK: false, Message: "Camera already running"})
	case err != nil:
		s.log.Error("failed to start pipeline", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, okResponse{OK: false, Message: err.Error()})
	default:
		s.writeJSON(w, http.StatusOK, okResponse{OK: true})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.pipeline.Stop()
	s.writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipeline.Status())
}

type levelMessage struct {
	Type  string  `json:"type,omitempty"`
	Level float64 `json:"level"`
}

func (s *Server) handleLevel(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, levelMessage{Level: s.pipeline.Level()})
}

func (s *Server) handleCaution(w http.ResponseWriter, r *http.Request) {
	step := r.URL.Query().Get("step")
	if step == "" {
		http.Error(w, "Missing step", http.StatusBadRequest)
		return
	}
	if s.cautioner == nil {
		http.Error(w, "No caution provider configured", http.StatusNotImplemented)
		return
	}

	raw, err := s.cautioner.Caution(r.Context(), step)
	if err != nil {
		s.log.Error("caution failed", "step", step, "error", err)
		http.Error(w, "Caution provider failed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, llm.ParseCaution(raw))
}
