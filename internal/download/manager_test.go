package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bogem/id3v2"
	"go.uber.org/zap"

	"github.com/hearthis-dl/hearthis-dl/internal/archive"
	"github.com/hearthis-dl/hearthis-dl/internal/config"
	"github.com/hearthis-dl/hearthis-dl/internal/interval"
)

// fakeSite serves a playlist of memberCount tracks plus their track pages
// and audio assets, counting hits per path.
type fakeSite struct {
	srv         *httptest.Server
	memberCount int
	failAssets  map[int]bool

	// holdAssets makes asset responses block after their first bytes until
	// releaseAssets is closed; assetStarted is closed when the first asset
	// request reaches that point.
	holdAssets    bool
	assetStarted  chan struct{}
	releaseAssets chan struct{}
	startOnce     sync.Once

	mu   sync.Mutex
	hits map[string]int
}

func newFakeSite(t *testing.T, memberCount int) *fakeSite {
	t.Helper()
	site := &fakeSite{
		memberCount:   memberCount,
		failAssets:    make(map[int]bool),
		assetStarted:  make(chan struct{}),
		releaseAssets: make(chan struct{}),
		hits:          make(map[string]int),
	}
	site.srv = httptest.NewServer(http.HandlerFunc(site.handle))
	t.Cleanup(site.srv.Close)
	return site
}

func (s *fakeSite) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/dj/set/summer/":
		fmt.Fprint(w, s.playlistHTML())
	case strings.HasPrefix(r.URL.Path, "/dj/track-"):
		n := s.trackNum(r.URL.Path, "/dj/track-", "/")
		fmt.Fprint(w, s.trackHTML(n))
	case strings.HasPrefix(r.URL.Path, "/audio/"):
		n := s.trackNum(r.URL.Path, "/audio/", ".mp3")
		if s.failAssets[n] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "\xff\xfbfake audio payload %d", n)
		if s.holdAssets {
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			s.startOnce.Do(func() { close(s.assetStarted) })
			<-s.releaseAssets
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeSite) trackNum(path, prefix, suffix string) int {
	var n int
	fmt.Sscanf(strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix), "%d", &n)
	return n
}

func (s *fakeSite) trackHTML(n int) string {
	id := 100 + n
	return fmt.Sprintf(`<html><body>
<div id="time%d"><div class="timeago" title="2025-02-03T10:23:47+00:00">x</div></div>
<div id="play%d" data-track-url="%s/audio/%d.mp3" data-track-name="track-%d.mp3"></div>
<div class="haus-tag-container"><a>#house</a><a>#original</a></div>
<a id="song-author%d">DJ Example</a>
<div id="song-name%d">Track %d</div>
</body></html>`, id, id, s.srv.URL, n, n, id, id, n)
}

func (s *fakeSite) playlistHTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><h1 class="playlist-title">Summer Set</h1><div class="playlist-tracks-container">`)
	for n := 1; n <= s.memberCount; n++ {
		fmt.Fprintf(&b, `<a class="track-link" data-track-id="%d" href="%s/dj/track-%d/">Track %d</a>`,
			100+n, s.srv.URL, n, n)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func (s *fakeSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *fakeSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings := config.DefaultSettings()
	settings.OutputPath = t.TempDir()
	settings.ShowProgress = false
	settings.DownloadMaxRetries = 1
	settings.DownloadRetryCooldown = 0.001
	return settings
}

func newTestManager(t *testing.T, settings *config.Settings, store *archive.Store) *Manager {
	t.Helper()
	manager, err := NewManager(settings, store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	return manager
}

func readFrame(t *testing.T, path, frameID string) string {
	t.Helper()
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open tags of %s: %v", path, err)
	}
	defer tag.Close()
	return tag.GetTextFrame(frameID).Text
}

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want urlKind
	}{
		{"https://hearthis.at/dj-example/night-drive/", kindTrack},
		{"https://hearthis.at/dj-example/set/summer-set/", kindPlaylist},
		{"https://hearthis.at/dj-example/", kindUnsupported},
		{"https://hearthis.at/", kindUnsupported},
		{"https://hearthis.at/a/b/c/", kindUnsupported},
		{"ftp://hearthis.at/dj/track/", kindUnsupported},
		{"not a url at all ://", kindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := classify(tt.url); got != tt.want {
				t.Errorf("classify(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestRun_SingleTrack(t *testing.T) {
	site := newFakeSite(t, 1)
	settings := testSettings(t)

	// A stale staging file from a crashed run is cleaned up.
	stale := filepath.Join(settings.OutputPath, "old.mp3.part")
	if err := os.WriteFile(stale, []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := newTestManager(t, settings, nil)
	summary, err := manager.Run(context.Background(), site.srv.URL+"/dj/track-3/")
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	downloaded, skipped, failed := summary.Counts()
	if downloaded != 1 || skipped != 0 || failed != 0 {
		t.Fatalf("Counts() = (%d, %d, %d), want (1, 0, 0)", downloaded, skipped, failed)
	}

	dest := filepath.Join(settings.OutputPath, "Track 3 [103].mp3")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("destination file missing: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale staging file was not cleaned up")
	}

	if got := readFrame(t, dest, "TIT2"); got != "Track 3" {
		t.Errorf("title = %q", got)
	}
	if got := readFrame(t, dest, "TCON"); got != "house" {
		t.Errorf("genre = %q, want marker stripped and original dropped", got)
	}
	// No playlist context: no album, no track number.
	if got := readFrame(t, dest, "TALB"); got != "" {
		t.Errorf("album = %q, want unset", got)
	}
	if got := readFrame(t, dest, "TRCK"); got != "" {
		t.Errorf("track number = %q, want unset", got)
	}
}

func TestRun_PlaylistIntervalAndArchive(t *testing.T) {
	site := newFakeSite(t, 10)
	settings := testSettings(t)
	settings.Interval = "3-5"

	archivePath := filepath.Join(t.TempDir(), "archive.txt")
	if err := os.WriteFile(archivePath, []byte("104\n"), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := archive.Open(archivePath)
	if err != nil {
		t.Fatal(err)
	}

	manager := newTestManager(t, settings, store)
	summary, err := manager.Run(context.Background(), site.srv.URL+"/dj/set/summer/")
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if summary.PlaylistTitle != "Summer Set" {
		t.Errorf("PlaylistTitle = %q", summary.PlaylistTitle)
	}
	downloaded, skipped, failed := summary.Counts()
	if downloaded != 2 || skipped != 1 || failed != 0 {
		t.Fatalf("Counts() = (%d, %d, %d), want (2, 1, 0)", downloaded, skipped, failed)
	}

	folder := filepath.Join(settings.OutputPath, "Summer Set")
	third := filepath.Join(folder, "Track 3 [103].mp3")
	fifth := filepath.Join(folder, "Track 5 [105].mp3")
	for _, path := range []string{third, fifth} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected file missing: %v", err)
		}
	}
	if entries, _ := os.ReadDir(folder); len(entries) != 2 {
		t.Errorf("playlist folder has %d entries, want 2", len(entries))
	}

	// The archived member is pruned before its page is fetched.
	if hits := site.hitCount("/dj/track-4/"); hits != 0 {
		t.Errorf("archived member page fetched %d times, want 0", hits)
	}
	// Members outside the interval are never touched.
	for _, n := range []int{1, 2, 6, 10} {
		if hits := site.hitCount(fmt.Sprintf("/dj/track-%d/", n)); hits != 0 {
			t.Errorf("member %d outside interval fetched %d times, want 0", n, hits)
		}
	}

	// Track numbers are positions within the selection; the skipped member
	// still consumes its slot.
	if got := readFrame(t, third, "TRCK"); got != "1" {
		t.Errorf("track 103 TRCK = %q, want 1", got)
	}
	if got := readFrame(t, fifth, "TRCK"); got != "3" {
		t.Errorf("track 105 TRCK = %q, want 3", got)
	}
	for _, path := range []string{third, fifth} {
		if got := readFrame(t, path, "TALB"); got != "Summer Set" {
			t.Errorf("%s album = %q, want Summer Set", filepath.Base(path), got)
		}
	}

	// Completions are recorded for a future resume.
	for _, id := range []string{"103", "104", "105"} {
		if !store.Contains(id) {
			t.Errorf("archive missing %s after run", id)
		}
	}
}

func TestRun_ConcurrentPlaylist(t *testing.T) {
	site := newFakeSite(t, 6)
	settings := testSettings(t)
	settings.Concurrency = 3

	store, err := archive.Open(filepath.Join(t.TempDir(), "archive.txt"))
	if err != nil {
		t.Fatal(err)
	}

	manager := newTestManager(t, settings, store)
	summary, err := manager.Run(context.Background(), site.srv.URL+"/dj/set/summer/")
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	downloaded, skipped, failed := summary.Counts()
	if downloaded != 6 || skipped != 0 || failed != 0 {
		t.Fatalf("Counts() = (%d, %d, %d), want (6, 0, 0)", downloaded, skipped, failed)
	}

	folder := filepath.Join(settings.OutputPath, "Summer Set")
	for n := 1; n <= 6; n++ {
		path := filepath.Join(folder, fmt.Sprintf("Track %d [%d].mp3", n, 100+n))
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("member %d missing: %v", n, err)
		}
		// Parallel members keep their selection positions.
		if got := readFrame(t, path, "TRCK"); got != strconv.Itoa(n) {
			t.Errorf("member %d TRCK = %q, want %d", n, got, n)
		}
		if !store.Contains(strconv.Itoa(100 + n)) {
			t.Errorf("archive missing %d after run", 100+n)
		}
	}
	if store.Len() != 6 {
		t.Errorf("archive holds %d ids, want 6", store.Len())
	}
}

func TestRun_CancellationLeavesNoFinalNames(t *testing.T) {
	site := newFakeSite(t, 3)
	site.holdAssets = true
	settings := testSettings(t)

	manager := newTestManager(t, settings, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = manager.Run(ctx, site.srv.URL+"/dj/set/summer/")
	}()

	// Cancel while the first asset download is in flight.
	<-site.assetStarted
	cancel()
	<-done
	close(site.releaseAssets)

	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", runErr)
	}

	folder := filepath.Join(settings.OutputPath, "Summer Set")
	if finals, _ := filepath.Glob(filepath.Join(folder, "*.mp3")); len(finals) != 0 {
		t.Errorf("half-written files under final names: %v", finals)
	}
	if parts, _ := filepath.Glob(filepath.Join(folder, "*.part")); len(parts) != 0 {
		t.Errorf("staging files left after cleanup: %v", parts)
	}
}

func TestRun_MemberFailureContinues(t *testing.T) {
	site := newFakeSite(t, 3)
	site.failAssets[2] = true
	settings := testSettings(t)

	manager := newTestManager(t, settings, nil)
	summary, err := manager.Run(context.Background(), site.srv.URL+"/dj/set/summer/")
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	downloaded, _, failed := summary.Counts()
	if downloaded != 2 || failed != 1 {
		t.Fatalf("Counts() = downloaded %d, failed %d; want 2 and 1", downloaded, failed)
	}

	folder := filepath.Join(settings.OutputPath, "Summer Set")
	// The failed member leaves no partial file under a final name.
	if _, err := os.Stat(filepath.Join(folder, "Track 2 [102].mp3")); !os.IsNotExist(err) {
		t.Error("failed member left a final-named file")
	}
	if matches, _ := filepath.Glob(filepath.Join(folder, "*.part")); len(matches) != 0 {
		t.Errorf("staging files left behind: %v", matches)
	}
	// The members around it completed with their selection positions.
	if got := readFrame(t, filepath.Join(folder, "Track 3 [103].mp3"), "TRCK"); got != "3" {
		t.Errorf("track 103 TRCK = %q, want 3", got)
	}
}

func TestRun_SkipExisting(t *testing.T) {
	site := newFakeSite(t, 1)
	settings := testSettings(t)
	settings.SkipExisting = true

	dest := filepath.Join(settings.OutputPath, "Track 1 [101].mp3")
	if err := os.WriteFile(dest, []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := newTestManager(t, settings, nil)
	summary, err := manager.Run(context.Background(), site.srv.URL+"/dj/track-1/")
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if _, skipped, _ := summary.Counts(); skipped != 1 {
		t.Fatalf("want 1 skipped, got summary %+v", summary.Results)
	}
	if hits := site.hitCount("/audio/1.mp3"); hits != 0 {
		t.Errorf("asset fetched %d times despite existing destination", hits)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "existing" {
		t.Error("existing file was overwritten")
	}
}

func TestRun_NoSubfolder(t *testing.T) {
	site := newFakeSite(t, 2)
	settings := testSettings(t)
	settings.NoSubfolder = true

	manager := newTestManager(t, settings, nil)
	if _, err := manager.Run(context.Background(), site.srv.URL+"/dj/set/summer/"); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if _, err := os.Stat(filepath.Join(settings.OutputPath, "Track 1 [101].mp3")); err != nil {
		t.Errorf("track not in output root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(settings.OutputPath, "Summer Set")); !os.IsNotExist(err) {
		t.Error("subfolder created despite no_subfolder")
	}
}

func TestRun_ArtistPrefix(t *testing.T) {
	site := newFakeSite(t, 1)
	settings := testSettings(t)
	settings.ArtistPrefix = true

	manager := newTestManager(t, settings, nil)
	if _, err := manager.Run(context.Background(), site.srv.URL+"/dj/track-1/"); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	want := filepath.Join(settings.OutputPath, "DJ Example - Track 1 [101].mp3")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("prefixed file missing: %v", err)
	}
}

func TestRun_KeepOriginalTags(t *testing.T) {
	site := newFakeSite(t, 1)
	settings := testSettings(t)
	settings.KeepOriginalTags = true

	manager := newTestManager(t, settings, nil)
	if _, err := manager.Run(context.Background(), site.srv.URL+"/dj/track-1/"); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	dest := filepath.Join(settings.OutputPath, "Track 1 [101].mp3")
	if got := readFrame(t, dest, "TIT2"); got != "" {
		t.Errorf("title written despite keep_original_tags: %q", got)
	}
}

func TestRun_UnsupportedURL(t *testing.T) {
	settings := testSettings(t)
	manager := newTestManager(t, settings, nil)

	_, err := manager.Run(context.Background(), "https://example.com/just-one-segment")
	if !errors.Is(err, ErrUnsupportedURL) {
		t.Errorf("Run() error = %v, want ErrUnsupportedURL", err)
	}
}

func TestRun_InvalidIntervalAbortsBeforeNetwork(t *testing.T) {
	site := newFakeSite(t, 3)
	settings := testSettings(t)
	settings.Interval = "five-six"

	manager := newTestManager(t, settings, nil)
	_, err := manager.Run(context.Background(), site.srv.URL+"/dj/set/summer/")
	if !errors.Is(err, interval.ErrInvalidFormat) {
		t.Fatalf("Run() error = %v, want ErrInvalidFormat", err)
	}
	if site.totalHits() != 0 {
		t.Errorf("server got %d requests, want 0 before interval validation", site.totalHits())
	}
}

func TestRun_EmptySelection(t *testing.T) {
	site := newFakeSite(t, 3)
	settings := testSettings(t)
	settings.Interval = "20-25"

	manager := newTestManager(t, settings, nil)
	_, err := manager.Run(context.Background(), site.srv.URL+"/dj/set/summer/")
	if !errors.Is(err, interval.ErrEmptySelection) {
		t.Fatalf("Run() error = %v, want ErrEmptySelection", err)
	}
	// The playlist page itself is fetched to learn the size; no member is.
	for n := 1; n <= 3; n++ {
		if hits := site.hitCount(fmt.Sprintf("/dj/track-%d/", n)); hits != 0 {
			t.Errorf("member %d fetched despite empty selection", n)
		}
	}
}
