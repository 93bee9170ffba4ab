// Package catalog turns third-party catalog links (tracks, albums,
// playlists, artists) into ordered lists of searchable items.
package catalog
