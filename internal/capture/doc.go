// Package capture schedules periodic screen captures and feeds the
// resulting frames into the processing pipeline. The scheduler owns the
// cadence and the exclusion policy; what a frame means is decided
// downstream.
package capture
