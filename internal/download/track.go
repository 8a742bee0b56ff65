package download

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/hearthis-dl/hearthis-dl/internal/audio"
	"github.com/hearthis-dl/hearthis-dl/internal/convert"
	"github.com/hearthis-dl/hearthis-dl/internal/imgutil"
	"github.com/hearthis-dl/hearthis-dl/internal/metadata"
	"github.com/hearthis-dl/hearthis-dl/internal/model"
)

// Outcome is the terminal state of one track acquisition.
type Outcome int

const (
	// OutcomeFailed means the track did not complete; Result.Err says why.
	OutcomeFailed Outcome = iota
	// OutcomeDownloaded means the track was fetched, tagged and finalized.
	OutcomeDownloaded
	// OutcomeSkipped means the track was already present (archive hit or
	// existing destination file) and nothing was downloaded.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the per-track outcome reported in the run summary.
type Result struct {
	Identity model.Identity
	Title    string
	Path     string
	Outcome  Outcome
	Err      error
}

// trackContext carries the explicit output context for one acquisition:
// destination directory, album tagging context and, for playlist members,
// the id known from enumeration. Threading this value through acquire
// replaces any shared mutable "current prefix" state, which keeps parallel
// members independent.
type trackContext struct {
	dir         string
	album       string
	trackNumber int
	knownID     string
}

// acquire runs the full pipeline for one track: fetch page, normalize
// metadata, skip checks, staged download, tagging, conversion, finalize,
// archive. It never panics across member boundaries; every exit path is a
// Result.
func (m *Manager) acquire(ctx context.Context, pageURL string, tc trackContext) Result {
	res := Result{Identity: model.Identity{ID: tc.knownID, SourceURL: pageURL}}

	// Archive hits known from playlist enumeration skip the page fetch too.
	if tc.knownID != "" && m.store.Contains(tc.knownID) {
		m.log.Debugw("already in archive", "track", tc.knownID)
		res.Outcome = OutcomeSkipped
		return res
	}

	html, err := m.client.GetPage(ctx, pageURL)
	if err != nil {
		return m.fail(res, err)
	}
	page, err := m.parser.ParseTrackPage(html)
	if err != nil {
		return m.fail(res, err)
	}
	res.Identity.ID = page.ID
	res.Title = page.Raw.Title

	if m.store.Contains(page.ID) {
		m.log.Debugw("already in archive", "track", page.ID)
		res.Outcome = OutcomeSkipped
		return res
	}

	tags, err := metadata.Normalize(page.Raw, metadata.Context{
		SourceURL:   pageURL,
		TrackNumber: tc.trackNumber,
		Album:       tc.album,
	}, metadata.Options{
		FirstDescriptionWins: m.settings.DescriptionPick == "first",
	})
	if err != nil {
		return m.fail(res, err)
	}

	ext := strings.ToLower(filepath.Ext(page.Raw.AssetName))
	if ext == "" {
		ext = ".mp3"
	}
	destPath := filepath.Join(tc.dir, model.FileName(tags, page.ID, ext, m.settings.ArtistPrefix))

	if m.settings.SkipExisting {
		if _, err := os.Stat(destPath); err == nil {
			m.log.Debugw("destination exists", "path", destPath)
			res.Outcome = OutcomeSkipped
			res.Path = destPath
			return res
		}
	}

	if err := os.MkdirAll(tc.dir, 0755); err != nil {
		return m.fail(res, err)
	}

	staging := destPath + stagingSuffix
	if err := m.downloadAsset(ctx, page.Raw.AssetURL, staging, page.Raw.Title); err != nil {
		os.Remove(staging)
		return m.fail(res, err)
	}

	if audio.Taggable(ext) && !m.settings.KeepOriginalTags {
		if cover := m.fetchCover(ctx, page.ID, page.Raw.CoverURL); cover != nil {
			tags.Cover = cover
		}
		// Tags go onto the staged file; the rename below is the last step.
		if err := m.tagger.WriteTags(staging, tags); err != nil {
			m.log.Warnw("tagging failed, keeping untagged file", "track", page.ID, "error", err)
		}
	}

	staging, destPath = m.applyConversion(ctx, staging, destPath, page.ID)

	if err := os.Rename(staging, destPath); err != nil {
		os.Remove(staging)
		return m.fail(res, err)
	}
	res.Path = destPath

	if err := m.store.Record(page.ID); err != nil {
		// The file is in place but the completion was not persisted; report
		// the track as failed so the user knows the archive is behind.
		return m.fail(res, err)
	}

	res.Outcome = OutcomeDownloaded
	m.log.Infow("track finalized", "track", page.ID, "path", destPath)
	return res
}

func (m *Manager) fail(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Err = err
	m.log.Warnw("track failed", "track", res.Identity.ID, "url", res.Identity.SourceURL, "error", err)
	return res
}

// downloadAsset streams the audio asset to the staging path with retries and
// an optional progress bar. The bar is only rendered for sequential runs;
// parallel members would interleave their output.
func (m *Manager) downloadAsset(ctx context.Context, assetURL, staging, title string) error {
	var onProgress func(written, total int64)
	var bar *progressbar.ProgressBar
	if m.settings.ShowProgress && m.settings.Concurrency == 1 {
		onProgress = func(written, total int64) {
			if bar == nil {
				bar = progressbar.DefaultBytes(total, title)
			}
			bar.Set64(written)
		}
	}

	var err error
	for tries := 0; tries < m.settings.DownloadMaxRetries; tries++ {
		if err = m.client.DownloadFile(ctx, assetURL, staging, onProgress); err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		m.log.Warnw("download failed, retrying",
			"url", assetURL, "attempt", tries+1, "of", m.settings.DownloadMaxRetries, "error", err)
		m.waitForRetry(ctx, tries)
	}
	if bar != nil {
		bar.Finish()
	}
	return err
}

// fetchCover downloads the cover art and normalizes it to bounded JPEG
// bytes. Cover art is optional: every failure is logged and swallowed.
func (m *Manager) fetchCover(ctx context.Context, id, coverURL string) []byte {
	if coverURL == "" {
		return nil
	}
	data, err := m.client.DownloadBytes(ctx, coverURL)
	if err != nil {
		m.log.Warnw("cover art unavailable", "track", id, "error", err)
		return nil
	}
	cover, err := imgutil.FitJPEG(data, m.settings.CoverMaxSize, m.settings.CoverMaxSize)
	if err != nil {
		m.log.Warnw("cover art unusable", "track", id, "error", err)
		return nil
	}
	return cover
}

// applyConversion probes the staged file, decides the transcoding action and
// applies it. On any failure the original staging file and destination are
// returned unchanged; conversion is best-effort.
func (m *Manager) applyConversion(ctx context.Context, staging, destPath, id string) (string, string) {
	if m.policy == convert.PolicyNone {
		return staging, destPath
	}

	probe, err := m.prober.Probe(ctx, staging)
	if err != nil {
		m.log.Warnw("audio probe failed, skipping conversion", "track", id, "error", err)
		return staging, destPath
	}

	decision := convert.Decide(m.policy, probe)
	if decision.Action == convert.ActionNone {
		m.log.Debugw("no conversion needed", "track", id, "container", probe.Container)
		return staging, destPath
	}

	newDest := strings.TrimSuffix(destPath, filepath.Ext(destPath)) + convert.TargetExt(decision)
	newStaging := newDest + stagingSuffix
	if err := m.transcoder.Transcode(ctx, staging, newStaging, decision); err != nil {
		m.log.Warnw("transcoding failed, keeping original", "track", id, "error", err)
		os.Remove(newStaging)
		return staging, destPath
	}

	os.Remove(staging)
	m.log.Infow("transcoded", "track", id, "container", probe.Container, "target", convert.TargetExt(decision))
	return newStaging, newDest
}

func (m *Manager) waitForRetry(ctx context.Context, tries int) {
	cooldown := m.settings.DownloadRetryCooldown * math.Pow(m.settings.DownloadRetryExponent, float64(tries))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}
