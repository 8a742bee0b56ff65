// Package audio writes normalized metadata into downloaded audio files.
//
// Only MP3 files are tag-capable (see Taggable); the tagger embeds the
// canonical tag record plus cover art via ID3v2 frames, overwriting any
// pre-existing comment and cover frames instead of appending to them.
package audio
