// Package queue manages the per-guild playback queue.
// It keeps entries in FIFO order, bounds the queue size, and supports the
// explicit reordering commands (move, shuffle) plus paging for display.
package queue
