// Package convert decides and applies the post-download transcoding policy.
//
// The decision logic is pure: a policy plus the probed audio properties maps
// to a transcoding action. Executing an action shells out to ffmpeg, the
// same way probing shells out to ffprobe; both are best-effort collaborators
// and their failures never lose the original file.
package convert

import (
	"errors"
	"fmt"
)

// Policy is the user-selected conversion tier.
type Policy int

const (
	// PolicyNone leaves every download untouched.
	PolicyNone Policy = iota
	// PolicyFlac converts lossless non-FLAC containers to FLAC, no caps.
	PolicyFlac
	// PolicyFlac16 additionally caps bit depth at 16.
	PolicyFlac16
	// PolicyFlacMin caps bit depth at 16 and the sample rate at the
	// 44.1/48 kHz tier.
	PolicyFlacMin
	// PolicyOnlyMP3 forces every non-MP3 download to MP3.
	PolicyOnlyMP3
)

// ErrUnknownPolicy reports an unrecognized policy name.
var ErrUnknownPolicy = errors.New("unknown conversion policy")

// ParsePolicy maps a policy name from configuration to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "none":
		return PolicyNone, nil
	case "flac":
		return PolicyFlac, nil
	case "flac16":
		return PolicyFlac16, nil
	case "flacmin":
		return PolicyFlacMin, nil
	case "onlymp3":
		return PolicyOnlyMP3, nil
	}
	return PolicyNone, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

func (p Policy) String() string {
	switch p {
	case PolicyFlac:
		return "flac"
	case PolicyFlac16:
		return "flac16"
	case PolicyFlacMin:
		return "flacmin"
	case PolicyOnlyMP3:
		return "onlymp3"
	default:
		return "none"
	}
}

// Probe holds the audio properties detected for a downloaded asset. An empty
// Container means detection failed; every policy treats that as "leave it
// alone".
type Probe struct {
	Container  string // "mp3", "wav", "aiff", "alac", "flac", ...
	BitDepth   int
	SampleRate int
}

// Action is the kind of transcoding to perform.
type Action int

const (
	// ActionNone keeps the file as downloaded.
	ActionNone Action = iota
	// ActionToFlac re-encodes a lossless source to FLAC.
	ActionToFlac
	// ActionToMP3 re-encodes to MP3.
	ActionToMP3
)

// Decision is the computed transcoding action for one asset. It is computed
// once per download and never recomputed. Zero caps mean "no cap".
type Decision struct {
	Action        Action
	BitDepthCap   int // 16 when capped
	SampleRateCap int // 44100 or 48000 when capped
}

// lossless containers that are not already FLAC.
var losslessContainers = map[string]struct{}{
	"wav":  {},
	"aiff": {},
	"alac": {},
}

// Decide maps the active policy and the probed properties to a transcoding
// action.
//
// onlymp3 converts anything that is not already MP3. The flac tiers only
// touch lossless-but-not-FLAC containers (wav/aiff/alac): flac adds no caps,
// flac16 caps bit depth at 16, and flacmin additionally caps the sample rate.
// Rates at or below 48 kHz are kept as-is (no upsampling), integer multiples
// of 48 kHz collapse to 48 kHz, everything else to 44.1 kHz. An undetectable
// container always yields no action; conversion is best-effort.
func Decide(policy Policy, probe Probe) Decision {
	if probe.Container == "" {
		return Decision{}
	}

	switch policy {
	case PolicyOnlyMP3:
		if probe.Container != "mp3" {
			return Decision{Action: ActionToMP3}
		}
		return Decision{}

	case PolicyFlac, PolicyFlac16, PolicyFlacMin:
		if _, lossless := losslessContainers[probe.Container]; !lossless {
			return Decision{}
		}
		d := Decision{Action: ActionToFlac}
		if policy == PolicyFlac16 || policy == PolicyFlacMin {
			if probe.BitDepth > 16 {
				d.BitDepthCap = 16
			}
		}
		if policy == PolicyFlacMin {
			d.SampleRateCap = capSampleRate(probe.SampleRate)
		}
		return d
	}

	return Decision{}
}

// capSampleRate picks the target rate for the flacmin tier. A zero return
// means the original rate is kept.
func capSampleRate(rate int) int {
	switch {
	case rate <= 48000:
		return 0
	case rate%48000 == 0:
		return 48000
	default:
		return 44100
	}
}
