// Command tracker runs the screen activity tracker: periodic capture,
// on-device text recognition, session classification, and the local
// HTTP API for summaries.
package main
