// Package player tracks the per-guild playback session: the current track,
// the transport handle it plays on, and pause-aware elapsed time. It also
// resolves track metadata through the media cache on a bounded worker pool.
package player
