// Package events is a small non-blocking pub/sub broker used to fan out
// deployment, replica and worker lifecycle events to the admin HTTP
// surface's event stream. Slow subscribers drop events rather than block
// publishers.
package events
