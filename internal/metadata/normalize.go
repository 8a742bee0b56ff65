// Package metadata turns the raw field bag scraped from a track page into
// the canonical tag record written to disk.
package metadata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hearthis-dl/hearthis-dl/internal/model"
)

// ErrIncomplete reports a track page that is missing one of the fields the
// pipeline cannot proceed without: title, uploader or asset URL.
var ErrIncomplete = errors.New("incomplete track metadata")

// releaseDateLayout is the long-form date used in description blocks,
// e.g. "March 10, 2024".
const releaseDateLayout = "January 2, 2006"

// BlockKind classifies one description block scraped from a track page.
type BlockKind int

const (
	// BlockDescription is free-form description text.
	BlockDescription BlockKind = iota
	// BlockPublisher carries the record label / publisher name.
	BlockPublisher
	// BlockReleaseDate carries a long-form release date that overrides the
	// upload date.
	BlockReleaseDate
	// BlockLicense carries license text; it is ignored by normalization.
	BlockLicense
)

// Block is a single tagged description block, in document order.
type Block struct {
	Kind BlockKind
	Text string
}

// Raw is the as-scraped field bag for one track page. It is produced by the
// page extractor and consumed exactly once by Normalize.
type Raw struct {
	Title      string
	Uploader   string
	UploadDate string // ISO timestamp or date; only the YYYY-MM-DD prefix is used
	AssetURL   string
	AssetName  string // filename with extension as reported by the site
	CoverURL   string
	GenreTags  []string
	Blocks     []Block
}

// Context carries the per-call tagging context: the source page URL and, in
// playlist runs, the album title and the track's position in the selection.
type Context struct {
	SourceURL   string
	TrackNumber int
	Album       string
}

// Options tunes normalization behavior.
type Options struct {
	// FirstDescriptionWins keeps the first plain description block instead
	// of the default last-one-wins when a page has several.
	FirstDescriptionWins bool
}

// genre tokens that carry no information and are always dropped.
var excludedGenres = map[string]struct{}{
	"original": {},
	"remix":    {},
}

// Normalize merges raw scraped fields into a canonical tag record.
//
// The working date starts as the YYYY-MM-DD prefix of the upload date and is
// overwritten by any release-date block found in the description; a release
// date always wins over the upload date, and later release-date blocks
// override earlier ones. Publisher blocks populate the optional publisher
// field (absence is a normal state, not an error). Genre tags lose a single
// leading marker character, drop the literal "original" and "remix" tokens,
// and are joined with ", " in first-seen order without duplicates.
//
// Normalize fails with ErrIncomplete when the title, uploader or asset URL
// is missing.
func Normalize(raw Raw, ctx Context, opts Options) (model.Tags, error) {
	switch {
	case raw.Title == "":
		return model.Tags{}, fmt.Errorf("%w: no title", ErrIncomplete)
	case raw.Uploader == "":
		return model.Tags{}, fmt.Errorf("%w: no uploader", ErrIncomplete)
	case raw.AssetURL == "":
		return model.Tags{}, fmt.Errorf("%w: no asset URL", ErrIncomplete)
	}

	tags := model.Tags{
		Title:   raw.Title,
		Artist:  raw.Uploader,
		Date:    isoDatePrefix(raw.UploadDate),
		Website: ctx.SourceURL,
		Genre:   joinGenres(raw.GenreTags),
		Album:   ctx.Album,
	}
	if ctx.TrackNumber > 0 {
		tags.TrackNumber = ctx.TrackNumber
	}

	for _, block := range raw.Blocks {
		switch block.Kind {
		case BlockReleaseDate:
			if d, err := time.Parse(releaseDateLayout, strings.TrimSpace(block.Text)); err == nil {
				tags.Date = d.Format("2006-01-02")
			}
		case BlockPublisher:
			tags.Publisher = strings.TrimSpace(block.Text)
		case BlockDescription:
			if opts.FirstDescriptionWins && tags.Comment != "" {
				continue
			}
			tags.Comment = strings.TrimSpace(block.Text)
		}
	}

	return tags, nil
}

// isoDatePrefix truncates an ISO timestamp like 2025-02-03T10:23:47+00:00 to
// its date part.
func isoDatePrefix(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// joinGenres strips a single leading marker character from each tag, drops
// excluded tokens and duplicates, and joins the rest in first-seen order.
func joinGenres(tags []string) string {
	seen := make(map[string]struct{}, len(tags))
	var genres []string
	for _, tag := range tags {
		genre := strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if genre == "" {
			continue
		}
		if _, excluded := excludedGenres[genre]; excluded {
			continue
		}
		if _, dup := seen[genre]; dup {
			continue
		}
		seen[genre] = struct{}{}
		genres = append(genres, genre)
	}
	return strings.Join(genres, ", ")
}
