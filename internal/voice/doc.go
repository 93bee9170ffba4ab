// Package voice keeps guild voice connections alive and playback moving.
//
// The Engine owns the inactivity monitor, the unexpected-disconnect
// detector, the reconnection driver with exponential backoff, and the
// end-of-track handler that advances the queue. Transport callbacks never
// run engine logic directly: they post events to the engine loop.
package voice
