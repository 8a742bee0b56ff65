// Package hearthis extracts track and playlist information from rendered
// hearthis.at pages.
//
// The site does not embed structured JSON, so the parser works on the DOM:
// the upload timestamp and track id come from the "timeago" node, the asset
// URL and name from the play button's data attributes, genres from the tag
// container, and the description sidebar yields tagged blocks (plain text,
// record label, release date, license) in document order.
//
//	parser := hearthis.NewParser()
//	page, err := parser.ParseTrackPage(html)
//	raw := page.Raw // consumed by metadata.Normalize
//
// Playlist ("set") pages list their members with stable ids, so interval
// selection and archive lookups can prune members before any member page is
// fetched.
package hearthis
