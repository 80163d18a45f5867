// Package http provides the REST handlers for the tracker API: capture
// control, summaries, sessions, and health.
package http
