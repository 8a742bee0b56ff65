// Package download orchestrates the acquisition pipeline: URL
// classification, playlist enumeration and interval selection, per-track
// download with archive-based deduplication, tag writing, conversion-policy
// application, and conflict-free finalization on disk.
//
// The Manager is the top-level driver:
//
//	store, _ := archive.Open(settings.ArchivePath)
//	manager, _ := download.NewManager(settings, store, logger)
//	summary, err := manager.Run(ctx, url)
//
// One track is fully acquired (fetched, tagged, converted, renamed,
// archived) before its result is reported. Playlist members run through the
// same path with a bounded worker pool; member failures are recorded in the
// summary and never abort the playlist. All downloads land on a ".part"
// staging path first and are renamed only when complete, so cancellation
// never leaves a half-written file under a final name.
package download
