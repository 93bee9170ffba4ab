// Package service exposes the playback core as user commands. Every
// command returns a Result carrying the user-facing text, so any front end
// (the console, a chat adapter) only has to forward it.
package service
