// Package server assembles the tracker: storage, recognition, the
// capture pipeline, background jobs, and the HTTP API.
package server
