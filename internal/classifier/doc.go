// Package classifier turns the time-ordered stream of recognition
// samples into activity sessions. At most one session is open at a time;
// it closes on app switch, idle gap, or capture stop.
package classifier
