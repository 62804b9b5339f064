package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/resilience/internal/clock"
	"github.com/angeloszaimis/resilience/internal/greeter"
	"github.com/angeloszaimis/resilience/internal/handler"
	"github.com/angeloszaimis/resilience/internal/protector"
)

var _ = Describe("GreetHandler", func() {
	var (
		registry *protector.Registry
		prot     *protector.Protector
		log      *slog.Logger
	)

	settings := protector.Settings{
		Breaker: circuitbreaker.Config{
			FailureRateThreshold:   50,
			MinimumCalls:           2,
			WindowSize:             4,
			OpenStateWait:          time.Minute,
			HalfOpenPermittedCalls: 1,
		},
		Timeout: 50 * time.Millisecond,
	}

	newHandler := func(delay time.Duration) *handler.GreetHandler {
		svc := greeter.New(log, clock.NewSystem(), func() time.Duration { return delay })
		return handler.NewGreetHandler(log, prot, svc)
	}

	serve := func(h http.Handler, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		registry = protector.NewRegistry(settings, clock.NewSystem(), log, nil)
		prot = protector.New(registry, log, nil)
	})

	Describe("NewGreetHandler", func() {
		It("should create a handler", func() {
			Expect(newHandler(0)).NotTo(BeNil())
		})
	})

	Describe("ServeHTTP", func() {
		It("should serve the greeting", func() {
			w := serve(newHandler(0), "/greet?name=Bob")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("Hello Bob! (in 0)"))
			Expect(w.Header().Get("Content-Type")).To(ContainSubstring("text/plain"))
		})

		Context("with a missing name", func() {
			It("should serve the fallback greeting", func() {
				w := serve(newHandler(0), "/greet")

				Expect(w.Code).To(Equal(http.StatusOK))
				Expect(w.Body.String()).To(Equal(handler.FallbackGreeting))
			})
		})

		Context("with a slow greeting", func() {
			It("should serve the fallback within the time limit", func() {
				h := newHandler(200 * time.Millisecond)

				start := time.Now()
				w := serve(h, "/greet?name=Bob")
				elapsed := time.Since(start)

				Expect(w.Code).To(Equal(http.StatusOK))
				Expect(w.Body.String()).To(Equal(handler.FallbackGreeting))
				Expect(elapsed).To(BeNumerically("<", 150*time.Millisecond))
			})
		})

		Context("with an open circuit", func() {
			It("should serve the fallback without calling the service", func() {
				draws := 0
				svc := greeter.New(log, clock.NewSystem(), func() time.Duration {
					draws++
					return 0
				})
				h := handler.NewGreetHandler(log, prot, svc)

				// Two immediate failures trip the greet breaker
				serve(h, "/greet")
				serve(h, "/greet")
				Expect(registry.Stats()[handler.GreetOperation]).To(Equal(circuitbreaker.StateOpen))

				w := serve(h, "/greet?name=Bob")
				Expect(w.Code).To(Equal(http.StatusOK))
				Expect(w.Body.String()).To(Equal(handler.FallbackGreeting))
				Expect(draws).To(BeZero())
			})
		})
	})
})

var _ = Describe("BreakersHandler", func() {
	var (
		registry *protector.Registry
		h        http.HandlerFunc
	)

	BeforeEach(func() {
		log := slog.New(slog.NewTextHandler(os.Stdout, nil))
		registry = protector.NewRegistry(protector.Settings{
			Breaker: circuitbreaker.Config{
				FailureRateThreshold: 50,
				MinimumCalls:         2,
				WindowSize:           4,
				OpenStateWait:        time.Minute,
			},
		}, clock.NewSystem(), log, nil)
		h = handler.BreakersHandler(registry)
	})

	decode := func(w *httptest.ResponseRecorder) map[string]string {
		states := make(map[string]string)
		Expect(json.Unmarshal(w.Body.Bytes(), &states)).To(Succeed())
		return states
	}

	It("should return an empty object with no breakers", func() {
		req := httptest.NewRequest(http.MethodGet, "/breakers", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
		Expect(decode(w)).To(BeEmpty())
	})

	It("should report the state of every breaker", func() {
		registry.Get("greet")

		lookup := registry.Get("lookup")
		for i := 0; i < 2; i++ {
			permit, err := lookup.Breaker.Acquire()
			Expect(err).NotTo(HaveOccurred())
			lookup.Breaker.Record(permit, circuitbreaker.OutcomeFailure, 0)
		}

		req := httptest.NewRequest(http.MethodGet, "/breakers", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		states := decode(w)
		Expect(states).To(HaveLen(2))
		Expect(states["greet"]).To(Equal("CLOSED"))
		Expect(states["lookup"]).To(Equal("OPEN"))
	})
})
