package hearthis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hearthis-dl/hearthis-dl/internal/metadata"
)

// ErrPageStructure reports a page whose expected DOM nodes are absent,
// usually because the site markup changed or the URL points somewhere
// unexpected.
var ErrPageStructure = errors.New("unexpected page structure")

// TrackPage is the result of parsing a single track page: the site-assigned
// id plus the raw metadata fields.
type TrackPage struct {
	ID  string
	Raw metadata.Raw
}

// Member is one entry of a playlist page, in playlist order.
type Member struct {
	ID  string
	URL string
}

// Playlist is the result of parsing a set page.
type Playlist struct {
	Title   string
	Members []Member
}

// Parser extracts track and playlist data from hearthis.at HTML.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseTrackPage extracts the track id and raw metadata fields from a track
// page.
//
// Cover art thumbnails are upgraded from the 112px rendition the page embeds
// to the 500px one. Fields that are merely optional (cover, genres,
// description blocks) yield zero values when absent; only a page without the
// timeago anchor node fails, with ErrPageStructure.
func (p *Parser) ParseTrackPage(html string) (TrackPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return TrackPage{}, fmt.Errorf("parse track page: %w", err)
	}

	// The timeago node anchors everything: its title attribute holds the
	// upload timestamp and its parent id encodes the track id.
	timeago := doc.Find("div.timeago").First()
	if timeago.Length() == 0 {
		return TrackPage{}, fmt.Errorf("%w: no timeago node", ErrPageStructure)
	}
	uploadDate, _ := timeago.Attr("title")
	parentID, _ := timeago.Parent().Attr("id")
	id := strings.TrimPrefix(parentID, "time")
	if id == "" {
		return TrackPage{}, fmt.Errorf("%w: no track id", ErrPageStructure)
	}

	raw := metadata.Raw{
		UploadDate: uploadDate,
		Title:      strings.TrimSpace(doc.Find("div#song-name" + id).Text()),
		Uploader:   strings.TrimSpace(doc.Find("a#song-author" + id).Text()),
	}

	play := doc.Find("div#play" + id).First()
	raw.AssetURL, _ = play.Attr("data-track-url")
	raw.AssetName, _ = play.Attr("data-track-name")

	if src, ok := doc.Find("img#song-art" + id).First().Attr("src"); ok {
		raw.CoverURL = strings.Replace(src, "/112/112/", "/500/500/", 1)
	}

	doc.Find("div.haus-tag-container a").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			raw.GenreTags = append(raw.GenreTags, tag)
		}
	})

	raw.Blocks = parseDescriptionBlocks(doc)

	return TrackPage{ID: id, Raw: raw}, nil
}

// parseDescriptionBlocks walks the description sidebar in document order.
// Blocks with a <strong> child carry labeled values (record label, release
// date, license); blocks without one are plain description text.
func parseDescriptionBlocks(doc *goquery.Document) []metadata.Block {
	var blocks []metadata.Block
	doc.Find("div.track-description-container div.sidebar-description").Each(func(_ int, sel *goquery.Selection) {
		strong := sel.Find("strong").First()
		if strong.Length() == 0 {
			blocks = append(blocks, metadata.Block{
				Kind: metadata.BlockDescription,
				Text: strings.TrimSpace(sel.Text()),
			})
			return
		}

		label := sel.Text()
		value := strings.TrimSpace(strong.Text())
		switch {
		case strings.Contains(label, "Record label"):
			blocks = append(blocks, metadata.Block{Kind: metadata.BlockPublisher, Text: value})
		case strings.Contains(label, "Release date"):
			blocks = append(blocks, metadata.Block{Kind: metadata.BlockReleaseDate, Text: value})
		case strings.Contains(label, "License"):
			blocks = append(blocks, metadata.Block{Kind: metadata.BlockLicense, Text: value})
		}
	})
	return blocks
}

// ParsePlaylistPage extracts the playlist title and its ordered members from
// a set page. Each member link carries the track id in a data attribute, so
// archive lookups can skip members without fetching their pages.
func (p *Parser) ParsePlaylistPage(html string) (Playlist, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Playlist{}, fmt.Errorf("parse playlist page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1.playlist-title").First().Text())
	if title == "" {
		return Playlist{}, fmt.Errorf("%w: no playlist title", ErrPageStructure)
	}

	playlist := Playlist{Title: title}
	doc.Find("div.playlist-tracks-container a.track-link").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		id, _ := sel.Attr("data-track-id")
		playlist.Members = append(playlist.Members, Member{ID: id, URL: href})
	})

	if len(playlist.Members) == 0 {
		return Playlist{}, fmt.Errorf("%w: playlist has no members", ErrPageStructure)
	}

	return playlist, nil
}
