package main

import (
	"net/http"

	"github.com/angeloszaimis/resilience/internal/handler"
	"github.com/angeloszaimis/resilience/internal/metrics"
	"github.com/angeloszaimis/resilience/internal/protector"
)

func setupRouter(greetHandler *handler.GreetHandler, metricsCollector *metrics.Collector, registry *protector.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/greet", greetHandler.ServeHTTP)
	mux.HandleFunc("/metrics", metricsCollector.Handler())
	mux.HandleFunc("/breakers", handler.BreakersHandler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
