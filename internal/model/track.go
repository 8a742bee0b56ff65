package model

// Identity identifies a track on the source site.
//
// ID is the site-assigned identifier (numeric on hearthis, kept as a string
// so the archive file format stays opaque). SourceURL is the track page the
// identity was derived from. Identities are immutable once created.
type Identity struct {
	ID        string
	SourceURL string
}

// Tags is the normalized metadata record written into a track's tag
// container.
//
// Date is always ISO formatted (YYYY-MM-DD). Genre is the comma-joined,
// deduplicated genre list. Album, TrackNumber, Publisher, Comment and Cover
// are optional; zero values mean "absent" and the tagger leaves the
// corresponding frames untouched. Cover, when set, holds JPEG bytes.
type Tags struct {
	Title       string
	Artist      string
	Date        string
	Website     string
	Genre       string
	Album       string
	TrackNumber int
	Publisher   string
	Comment     string
	Cover       []byte
}

// FileName derives the final on-disk name for a finalized track:
//
//	<SanitizedTitle> [<id>]<ext>
//
// optionally prefixed with the sanitized artist name. ext must include the
// leading dot. The embedded id keeps names conflict-free even when two
// tracks share a title.
func FileName(tags Tags, id, ext string, artistPrefix bool) string {
	name := SanitizeFileName(tags.Title) + " [" + id + "]" + ext
	if artistPrefix && tags.Artist != "" {
		name = SanitizeFileName(tags.Artist) + " - " + name
	}
	return name
}
