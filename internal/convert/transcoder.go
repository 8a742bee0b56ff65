package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

const (
	ffmpegCommand  = "ffmpeg"
	ffmpegLogLevel = "error"

	// libmp3lame V0: highest VBR quality tier.
	mp3Quality = "0"
)

// ErrNoAction reports a Transcode call with a no-op decision; callers are
// expected to check Decision.Action first.
var ErrNoAction = errors.New("decision carries no transcoding action")

// Transcoder applies transcoding decisions by invoking ffmpeg.
//
// Transcoding is best-effort: on any failure the source file is left in
// place and the error is reported so the pipeline can log it and keep the
// original.
type Transcoder struct{}

// NewTranscoder creates a Transcoder.
func NewTranscoder() *Transcoder {
	return &Transcoder{}
}

// TargetExt returns the file extension a decision's output will carry, or
// the empty string for a no-op decision.
func TargetExt(d Decision) string {
	switch d.Action {
	case ActionToFlac:
		return ".flac"
	case ActionToMP3:
		return ".mp3"
	}
	return ""
}

// Transcode re-encodes src into dst according to the decision, preserving
// stream metadata. src is not removed; the caller swaps staging files only
// after a successful run.
func (t *Transcoder) Transcode(ctx context.Context, src, dst string, d Decision) error {
	args := []string{"-v", ffmpegLogLevel, "-y", "-i", src, "-map_metadata", "0"}

	switch d.Action {
	case ActionToFlac:
		args = append(args, "-c:a", "flac")
		if d.BitDepthCap == 16 {
			args = append(args, "-sample_fmt", "s16")
		}
		if d.SampleRateCap > 0 {
			args = append(args, "-ar", fmt.Sprint(d.SampleRateCap))
		}
	case ActionToMP3:
		args = append(args, "-c:a", "libmp3lame", "-q:a", mp3Quality)
	default:
		return ErrNoAction
	}

	args = append(args, dst)

	cmd := exec.CommandContext(ctx, ffmpegCommand, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg %s -> %s: %w: %s", src, dst, err, out)
	}
	return nil
}
