// Package model defines the core data structures shared across the
// hearthis-dl pipeline.
//
// # Identity
//
// Identity pins a track to its source: the site-assigned id and the page URL
// it was classified or enumerated from. Identities are never mutated.
//
// # Tags
//
// Tags is the normalized, write-ready metadata record produced by the
// metadata package and consumed by the audio tagger:
//
//	tags, err := metadata.Normalize(raw, ctx, opts)
//	err = tagger.WriteTags(path, tags)
//
// # File naming
//
// SanitizeFileName makes arbitrary strings safe for use as file or folder
// names, and FileName derives the conflict-free final name for a downloaded
// track:
//
//	model.FileName(tags, "2801506", ".mp3", false)
//	// "Some Title [2801506].mp3"
package model
