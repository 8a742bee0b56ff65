package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/hearthis-dl/hearthis-dl/internal/interval"
	"github.com/hearthis-dl/hearthis-dl/internal/model"
)

// runPlaylist enumerates a playlist page, applies the interval selection and
// drives acquisitions for the selected members.
//
// Selection prunes before any member page is fetched. Track numbers follow
// the 1-based position within the selection, not the position in the full
// playlist; a member skipped via the archive still consumes its position, so
// re-running the same interval always yields the same numbering.
func (m *Manager) runPlaylist(ctx context.Context, playlistURL string, spec interval.Spec) (*Summary, error) {
	html, err := m.client.GetPage(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	playlist, err := m.parser.ParsePlaylistPage(html)
	if err != nil {
		return nil, err
	}

	start, end, err := spec.Rectify(len(playlist.Members))
	if err != nil {
		return nil, err
	}
	selected := playlist.Members[start-1 : end]

	folder := m.settings.OutputPath
	if !m.settings.NoSubfolder {
		folder = filepath.Join(folder, model.SanitizeFileName(playlist.Title))
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("create playlist folder %s: %w", folder, err)
	}

	m.log.Infow("playlist enumerated",
		"title", playlist.Title,
		"members", len(playlist.Members),
		"selected", len(selected),
		"range", fmt.Sprintf("%d-%d", start, end))

	summary := &Summary{
		PlaylistTitle: playlist.Title,
		Results:       make([]Result, len(selected)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.Concurrency)

	for i, member := range selected {
		i, member := i, member
		g.Go(func() error {
			if gctx.Err() != nil {
				summary.Results[i] = Result{
					Identity: model.Identity{ID: member.ID, SourceURL: member.URL},
					Outcome:  OutcomeFailed,
					Err:      gctx.Err(),
				}
				return nil
			}
			// Member failures land in the summary; they never abort the
			// playlist.
			summary.Results[i] = m.acquire(gctx, member.URL, trackContext{
				dir:         folder,
				album:       playlist.Title,
				trackNumber: i + 1,
				knownID:     member.ID,
			})
			return nil
		})
	}
	g.Wait()

	return summary, ctx.Err()
}
