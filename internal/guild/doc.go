// Package guild holds the registry of per-guild state. The registry owns
// every guild's queue, playback state, history and reconnection bookkeeping;
// other components look state up through it instead of keeping copies.
package guild
