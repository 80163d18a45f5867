// Package resilience provides the circuit breaker used around storage
// writes.
package resilience
