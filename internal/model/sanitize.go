package model

import "regexp"

// Characters that are invalid in file or folder names on at least one of the
// supported platforms: / \ ? % * : | " < >, control characters and DEL.
var invalidFileNameChars = regexp.MustCompile(`[/\\?%*:|"<>\x00-\x1f\x7f]`)

// SanitizeFileName replaces every filesystem-unsafe character with an
// underscore.
//
// The function is total and idempotent: it never fails, and sanitizing an
// already-sanitized string returns it unchanged. It deliberately does not
// trim length or handle reserved device names; callers must not assume
// safety beyond the replaced character class.
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2") // "Song_ Part 1_2"
func SanitizeFileName(name string) string {
	return invalidFileNameChars.ReplaceAllString(name, "_")
}
