// Package storage persists closed sessions and day summaries. The SQLite
// store is the source of truth; the buffered sink in front of it absorbs
// transient failures so persistence never stalls the capture pipeline.
package storage
