package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthis-dl/hearthis-dl/internal/archive"
	"github.com/hearthis-dl/hearthis-dl/internal/audio"
	"github.com/hearthis-dl/hearthis-dl/internal/config"
	"github.com/hearthis-dl/hearthis-dl/internal/convert"
	"github.com/hearthis-dl/hearthis-dl/internal/fetch"
	"github.com/hearthis-dl/hearthis-dl/internal/hearthis"
	"github.com/hearthis-dl/hearthis-dl/internal/interval"
)

// ErrUnsupportedURL reports an input URL that is neither a track nor a
// playlist page.
var ErrUnsupportedURL = errors.New("unsupported URL")

// stagingSuffix marks in-flight downloads. Staged files become visible under
// their final name only via the rename in finalize.
const stagingSuffix = ".part"

// Manager drives the whole acquisition pipeline.
type Manager struct {
	settings   *config.Settings
	policy     convert.Policy
	client     *fetch.Client
	parser     *hearthis.Parser
	tagger     *audio.Tagger
	prober     *convert.Prober
	transcoder *convert.Transcoder
	store      *archive.Store
	log        *zap.SugaredLogger
}

// NewManager creates a Manager. A nil store disables archive mode.
func NewManager(settings *config.Settings, store *archive.Store, log *zap.SugaredLogger) (*Manager, error) {
	policy, err := convert.ParsePolicy(settings.ConversionPolicy)
	if err != nil {
		return nil, err
	}

	return &Manager{
		settings:   settings,
		policy:     policy,
		client:     fetch.NewClient(),
		parser:     hearthis.NewParser(),
		tagger:     audio.NewTagger(),
		prober:     convert.NewProber(),
		transcoder: convert.NewTranscoder(),
		store:      store,
		log:        log,
	}, nil
}

// urlKind is the result of classifying an input URL.
type urlKind int

const (
	kindUnsupported urlKind = iota
	kindTrack
	kindPlaylist
)

// classify determines whether a URL points at a single track page
// (/user/track/) or a playlist page (/user/set/name/).
func classify(rawURL string) urlKind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return kindUnsupported
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return kindUnsupported
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	switch {
	case len(segments) == 2 && segments[1] != "set":
		return kindTrack
	case len(segments) == 3 && segments[1] == "set":
		return kindPlaylist
	}
	return kindUnsupported
}

// Run classifies the input URL and drives the matching pipeline. The
// configured interval is parsed up front so malformed expressions abort
// before any network activity. Orphaned staging files from earlier crashed
// runs are removed at start and end.
func (m *Manager) Run(ctx context.Context, rawURL string) (*Summary, error) {
	spec, err := interval.Parse(m.settings.Interval)
	if err != nil {
		return nil, err
	}

	m.cleanStaging()
	defer m.cleanStaging()

	switch classify(rawURL) {
	case kindTrack:
		res := m.acquire(ctx, rawURL, trackContext{dir: m.settings.OutputPath})
		summary := &Summary{Results: []Result{res}}
		if res.Err != nil {
			// Single-track failures are fatal to the run.
			return summary, res.Err
		}
		return summary, nil

	case kindPlaylist:
		return m.runPlaylist(ctx, rawURL, spec)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
}

// cleanStaging removes leftover staging files in the output directory and
// its immediate playlist subfolders.
func (m *Manager) cleanStaging() {
	patterns := []string{
		filepath.Join(m.settings.OutputPath, "*"+stagingSuffix),
		filepath.Join(m.settings.OutputPath, "*", "*"+stagingSuffix),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err == nil {
				m.log.Debugw("removed stale staging file", "path", path)
			}
		}
	}
}

// Summary aggregates per-track results of one run.
type Summary struct {
	PlaylistTitle string
	Results       []Result
}

// Counts returns the number of downloaded, skipped and failed tracks.
func (s *Summary) Counts() (downloaded, skipped, failed int) {
	for _, res := range s.Results {
		switch res.Outcome {
		case OutcomeDownloaded:
			downloaded++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return downloaded, skipped, failed
}
