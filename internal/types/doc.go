// Package types defines the shared domain types: frames, recognition
// results, sessions, and day summaries.
package types
