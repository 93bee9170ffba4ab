// Package media talks to the outside world for playable media: it runs
// yt-dlp to extract stream metadata and fetches album artwork.
package media
