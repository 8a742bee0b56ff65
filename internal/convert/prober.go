package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	ffprobeCommand  = "ffprobe"
	ffprobeLogLevel = "error"
)

// Prober detects container, bit depth and sample rate of a downloaded asset
// by shelling out to ffprobe.
type Prober struct{}

// NewProber creates a Prober.
func NewProber() *Prober {
	return &Prober{}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecName        string `json:"codec_name"`
	SampleRate       string `json:"sample_rate"`
	BitsPerSample    int    `json:"bits_per_sample"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
}

// Probe inspects the first audio stream of the file at path. A missing
// ffprobe binary or an unreadable file yields an error; callers treat that
// as "no conversion" rather than a hard failure.
func (p *Prober) Probe(ctx context.Context, path string) (Probe, error) {
	cmd := exec.CommandContext(ctx, ffprobeCommand,
		"-v", ffprobeLogLevel,
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,bits_per_sample,bits_per_raw_sample",
		"-of", "json",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Probe{}, fmt.Errorf("ffprobe %s: bad output: %w", path, err)
	}
	if len(parsed.Streams) == 0 {
		return Probe{}, fmt.Errorf("ffprobe %s: no audio stream", path)
	}

	stream := parsed.Streams[0]
	probe := Probe{
		Container: containerOf(path, stream.CodecName),
		BitDepth:  stream.BitsPerSample,
	}
	if probe.BitDepth == 0 {
		probe.BitDepth, _ = strconv.Atoi(stream.BitsPerRawSample)
	}
	probe.SampleRate, _ = strconv.Atoi(stream.SampleRate)

	return probe, nil
}

// containerOf normalizes the (extension, codec) pair into the container
// names the policy rules work with. ALAC hides inside .m4a, so the codec
// decides there; elsewhere the extension is authoritative.
func containerOf(path, codec string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "mp3"
	case ".wav":
		return "wav"
	case ".aiff", ".aif":
		return "aiff"
	case ".flac":
		return "flac"
	case ".m4a", ".mp4":
		if codec == "alac" {
			return "alac"
		}
		return codec
	}

	switch {
	case codec == "mp3":
		return "mp3"
	case codec == "flac":
		return "flac"
	case codec == "alac":
		return "alac"
	case strings.HasPrefix(codec, "pcm_"):
		return "wav"
	}
	return ""
}
