// Package aggregator maintains the rolling per-day summary: total screen
// time, per-app usage, and the duration-weighted productivity score.
// A day can always be recomputed from its stored sessions; the rolling
// aggregate exists so reads never touch storage.
package aggregator
