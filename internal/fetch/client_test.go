package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestGetPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	client := NewClient()

	html, err := client.GetPage(context.Background(), srv.URL+"/track")
	if err != nil {
		t.Fatalf("GetPage(): %v", err)
	}
	if html != "<html>ok</html>" {
		t.Errorf("GetPage() = %q", html)
	}

	if _, err := client.GetPage(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrPageUnavailable) {
		t.Errorf("GetPage() error = %v, want ErrPageUnavailable", err)
	}
}

func TestDownloadFile(t *testing.T) {
	payload := []byte("not really an mp3 but close enough")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "track.mp3")
	var lastWritten, lastTotal int64

	client := NewClient()
	err := client.DownloadFile(context.Background(), srv.URL, dest, func(written, total int64) {
		lastWritten, lastTotal = written, total
	})
	if err != nil {
		t.Fatalf("DownloadFile(): %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Errorf("downloaded %q, want %q", data, payload)
	}
	if lastWritten != int64(len(payload)) {
		t.Errorf("progress written = %d, want %d", lastWritten, len(payload))
	}
	if lastTotal != int64(len(payload)) {
		t.Errorf("progress total = %d, want %d", lastTotal, len(payload))
	}
}

func TestDownloadFile_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "track.mp3")
	err := NewClient().DownloadFile(context.Background(), srv.URL, dest, nil)
	if !errors.Is(err, ErrTransferFailed) {
		t.Errorf("DownloadFile() error = %v, want ErrTransferFailed", err)
	}
}
