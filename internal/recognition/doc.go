// Package recognition extracts on-screen text from captured frames.
// The engine normalizes backend output into reading order and degrades
// every failure to an empty result; a frame with no text and a frame
// that failed look identical downstream.
package recognition
