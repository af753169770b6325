package audio

import (
	"log"
	"math"
)

// DefaultSilenceThresholdDb is the amplitude threshold below which audio is
// treated as silence, in dBFS.
const DefaultSilenceThresholdDb = -40.0

// rmsWindowSeconds is the analysis window for silence detection. 100ms is
// short enough to catch word boundaries and long enough for a stable RMS.
const rmsWindowSeconds = 0.1

// SilenceRegion is a time interval where audio stays below the silence
// threshold. End is always greater than Start.
type SilenceRegion struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the region length in seconds.
func (r SilenceRegion) Duration() float64 { return r.End - r.Start }

// DetectSilences scans the audio file at path and returns the silences of at
// least minDuration seconds, in time order. thresholdDb is in dBFS (e.g. -40).
func DetectSilences(path string, thresholdDb, minDuration float64) ([]SilenceRegion, error) {
	w, err := ReadWAV(path)
	if err != nil {
		return nil, err
	}
	regions := detectSilences(w, thresholdDb, minDuration)
	log.Printf("[SilenceDetector] %s: %d silences >= %.1fs (threshold %.1f dB)",
		path, len(regions), minDuration, thresholdDb)
	return regions, nil
}

// detectSilences slides a fixed RMS window over the sample stream. A silence
// opens when the window RMS drops below the linear threshold and closes when
// it rises back above; regions shorter than minDuration are discarded. A
// silence still open at end of stream is closed at the last sample.
func detectSilences(w *WAV, thresholdDb, minDuration float64) []SilenceRegion {
	threshold := math.Pow(10, thresholdDb/20)
	framesPerWindow := int(float64(w.SampleRate) * rmsWindowSeconds)
	if framesPerWindow < 1 {
		framesPerWindow = 1
	}

	var (
		regions     []SilenceRegion
		silentSince float64
		inSilence   bool
	)

	totalFrames := w.Frames()
	for frame := 0; frame < totalFrames; frame += framesPerWindow {
		end := frame + framesPerWindow
		if end > totalFrames {
			end = totalFrames
		}

		var sum float64
		n := 0
		for f := frame; f < end; f++ {
			for c := 0; c < w.NumChannels; c++ {
				s := float64(w.Samples[f*w.NumChannels+c]) / 32768.0
				sum += s * s
				n++
			}
		}
		rms := math.Sqrt(sum / float64(n))

		t := float64(frame) / float64(w.SampleRate)
		if rms < threshold {
			if !inSilence {
				inSilence = true
				silentSince = t
			}
		} else if inSilence {
			inSilence = false
			if t-silentSince >= minDuration {
				regions = append(regions, SilenceRegion{Start: silentSince, End: t})
			}
		}
	}

	// Trailing silence runs to the last sample, not the last full window.
	if inSilence {
		end := float64(totalFrames) / float64(w.SampleRate)
		if end-silentSince >= minDuration {
			regions = append(regions, SilenceRegion{Start: silentSince, End: end})
		}
	}

	return regions
}
