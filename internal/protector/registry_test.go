package protector_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/resilience/internal/clock"
	"github.com/angeloszaimis/resilience/internal/metrics"
	"github.com/angeloszaimis/resilience/internal/protector"
)

var _ = Describe("Registry", func() {
	var (
		registry *protector.Registry
		fake     *clock.Fake
		logger   *slog.Logger
	)

	defaults := protector.Settings{
		Breaker: circuitbreaker.Config{
			FailureRateThreshold:   50,
			MinimumCalls:           2,
			WindowSize:             4,
			OpenStateWait:          10 * time.Second,
			HalfOpenPermittedCalls: 1,
		},
		Timeout: time.Second,
	}

	// trip drives an entry's breaker to OPEN using the registry defaults.
	trip := func(entry *protector.Entry) {
		for i := 0; i < 2; i++ {
			permit, err := entry.Breaker.Acquire()
			Expect(err).NotTo(HaveOccurred())
			entry.Breaker.Record(permit, circuitbreaker.OutcomeFailure, 0)
		}
	}

	BeforeEach(func() {
		fake = clock.NewFake(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		registry = protector.NewRegistry(defaults, fake, logger, nil)
	})

	Describe("NewRegistry", func() {
		It("should create a registry", func() {
			Expect(registry).NotTo(BeNil())
		})

		It("should fill unset defaults from the standard configuration", func() {
			registry = protector.NewRegistry(protector.Settings{}, fake, logger, nil)
			entry := registry.Get("greet")

			// Standard MinimumCalls is 100: two failures must not trip it
			trip(entry)
			Expect(entry.Breaker.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(entry.Limiter.Timeout()).To(Equal(5 * time.Second))
		})
	})

	Describe("Get", func() {
		It("should create a new entry for an unknown operation", func() {
			entry := registry.Get("greet")
			Expect(entry).NotTo(BeNil())
			Expect(entry.Breaker).NotTo(BeNil())
			Expect(entry.Limiter).NotTo(BeNil())
			Expect(entry.Breaker.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same entry for the same operation", func() {
			e1 := registry.Get("greet")
			e2 := registry.Get("greet")
			Expect(e1).To(BeIdenticalTo(e2))
		})

		It("should return different entries for different operations", func() {
			e1 := registry.Get("greet")
			e2 := registry.Get("lookup")
			Expect(e1).NotTo(BeIdenticalTo(e2))
		})

		It("should apply the registry defaults to new entries", func() {
			entry := registry.Get("greet")

			// Should open after 2 failures at 50%
			trip(entry)
			Expect(entry.Breaker.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(entry.Limiter.Timeout()).To(Equal(time.Second))
		})
	})

	Describe("Register", func() {
		It("should layer operation settings over the defaults", func() {
			registry.Register("greet", protector.Settings{
				Breaker: circuitbreaker.Config{MinimumCalls: 3},
				Timeout: 250 * time.Millisecond,
			})

			entry := registry.Get("greet")
			Expect(entry.Limiter.Timeout()).To(Equal(250 * time.Millisecond))

			// Two failures stay below the raised minimum
			trip(entry)
			Expect(entry.Breaker.State()).To(Equal(circuitbreaker.StateClosed))

			permit, err := entry.Breaker.Acquire()
			Expect(err).NotTo(HaveOccurred())
			entry.Breaker.Record(permit, circuitbreaker.OutcomeFailure, 0)
			Expect(entry.Breaker.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should not affect operations without an override", func() {
			registry.Register("lookup", protector.Settings{Timeout: 50 * time.Millisecond})

			entry := registry.Get("greet")
			Expect(entry.Limiter.Timeout()).To(Equal(time.Second))
		})

		It("should register a default fallback for the operation", func() {
			registry.Register("greet", protector.Settings{
				Fallback: func(ctx context.Context, cause error) (any, error) {
					return "degraded", nil
				},
			})

			entry := registry.Get("greet")
			Expect(entry.Fallback).NotTo(BeNil())

			value, err := entry.Fallback(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("degraded"))
		})

		It("should take effect for entries created after a Reset", func() {
			before := registry.Get("greet")
			Expect(before.Limiter.Timeout()).To(Equal(time.Second))

			registry.Register("greet", protector.Settings{Timeout: 50 * time.Millisecond})

			// Already materialized: old settings still in force
			Expect(registry.Get("greet").Limiter.Timeout()).To(Equal(time.Second))

			registry.Reset()
			Expect(registry.Get("greet").Limiter.Timeout()).To(Equal(50 * time.Millisecond))
		})
	})

	Describe("State change notification", func() {
		It("should emit a state change event when a breaker trips", func() {
			collector := metrics.NewCollector(100, logger)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			collector.Start(ctx)

			registry = protector.NewRegistry(defaults, fake, logger, collector)
			trip(registry.Get("greet"))

			Eventually(func() int64 {
				return collector.Snapshot().Operations["greet"].StateChanges
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot().Operations["greet"].State).To(Equal("OPEN"))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent Get calls safely", func() {
			const goroutines = 100
			const getsPerGoroutine = 10

			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					for j := 0; j < getsPerGoroutine; j++ {
						entry := registry.Get("greet") // Same operation
						Expect(entry).NotTo(BeNil())
					}
				}()
			}

			wg.Wait()

			// Should only have one entry for the operation
			stats := registry.Stats()
			Expect(stats).To(HaveLen(1))
		})
	})

	Describe("Reset", func() {
		It("should clear all entries", func() {
			registry.Get("greet")
			registry.Get("lookup")
			registry.Get("checkout")

			stats := registry.Stats()
			Expect(stats).To(HaveLen(3))

			registry.Reset()

			stats = registry.Stats()
			Expect(stats).To(HaveLen(0))
		})
	})

	Describe("Stats", func() {
		It("should return the state of every breaker", func() {
			e1 := registry.Get("greet")
			e2 := registry.Get("lookup")

			trip(e2)

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["greet"]).To(Equal(circuitbreaker.StateClosed))
			Expect(stats["lookup"]).To(Equal(circuitbreaker.StateOpen))

			Expect(e1.Breaker.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})
})
