// Package clock abstracts time for the resilience components. The circuit
// breaker and time limiter read the current time and schedule deadlines
// through a Clock, so tests can advance time manually instead of sleeping.
package clock
