package greeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/angeloszaimis/resilience/internal/clock"
)

// ErrMissingName is returned when Greet is called without a name. It fails
// fast: no delay is drawn.
var ErrMissingName = errors.New("missing name")

// MaxDelay bounds the randomized response delay.
const MaxDelay = 10 * time.Second

// DelayFunc draws the artificial delay for one greeting.
type DelayFunc func() time.Duration

type Service struct {
	logger *slog.Logger
	clock  clock.Clock
	delay  DelayFunc
}

// New creates the service. A nil delay draws a whole number of seconds
// below MaxDelay, matching the demo's original behavior.
func New(logger *slog.Logger, clk clock.Clock, delay DelayFunc) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if delay == nil {
		delay = func() time.Duration {
			return time.Duration(rand.Intn(int(MaxDelay/time.Second))) * time.Second
		}
	}

	return &Service{
		logger: logger,
		clock:  clk,
		delay:  delay,
	}
}

// Greet answers "Hello <name>! (in <seconds>)" after the drawn delay, where
// seconds is the delay's whole-second count. If the caller's context ends
// first, its error is returned instead.
func (s *Service) Greet(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrMissingName
	}

	delay := s.delay()
	s.logger.Debug("Greeting delayed",
		slog.String("name", name),
		slog.Duration("delay", delay))

	select {
	case <-s.clock.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return fmt.Sprintf("Hello %s! (in %d)", name, int(delay.Seconds())), nil
}
