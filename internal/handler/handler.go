package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/resilience/internal/greeter"
	"github.com/angeloszaimis/resilience/internal/protector"
)

// GreetOperation is the protected operation name behind /greet.
const GreetOperation = "greet"

// FallbackGreeting is served whenever the protected greeting cannot answer.
const FallbackGreeting = "Hello world! this is fallback"

type GreetHandler struct {
	logger    *slog.Logger
	protector *protector.Protector
	service   *greeter.Service
}

func (h *GreetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	h.logger.Info("Received request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("name", name))

	start := time.Now()
	msg, err := protector.Do(r.Context(), h.protector, GreetOperation,
		func(ctx context.Context) (string, error) {
			return h.service.Greet(ctx, name)
		},
		func(ctx context.Context, cause error) (string, error) {
			h.logger.Warn("Serving fallback greeting",
				slog.String("cause", cause.Error()))
			return FallbackGreeting, nil
		})
	duration := time.Since(start)

	// Only a failing fallback reaches this: rejections, timeouts, and
	// greeter errors were already converted into the fallback greeting
	if err != nil {
		h.logger.Error("Greeting failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration))
		http.Error(w, "Service unavailable", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Greeting served",
		slog.String("message", msg),
		slog.Duration("duration", duration))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(msg))
}

func NewGreetHandler(logger *slog.Logger, p *protector.Protector, svc *greeter.Service) *GreetHandler {
	return &GreetHandler{
		logger:    logger,
		protector: p,
		service:   svc,
	}
}

// BreakersHandler reports the state of every materialized breaker as JSON.
func BreakersHandler(registry *protector.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := make(map[string]string)
		for name, state := range registry.Stats() {
			states[name] = state.String()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(states); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
