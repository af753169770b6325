package audio

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// KeepRange is a stretch of original audio retained in cropped output, in the
// source file's timeline.
type KeepRange struct {
	Start    float64
	Duration float64
}

// CropResult describes the outcome of a silence crop.
type CropResult struct {
	OutputPath       string  `json:"output_path"`
	OriginalDuration float64 `json:"original_duration"`
	NewDuration      float64 `json:"new_duration"`
	RegionsCropped   int     `json:"regions_cropped"`
	TimeSaved        float64 `json:"time_saved"`
}

// CropSilences removes silences of at least minSilence seconds from the file
// at path and writes the spliced audio to a new file next to the original.
// keepPad seconds of context are preserved around every cut, half before and
// half after, so cuts do not land mid-word. The original file is never
// modified; when no silence qualifies the original path is returned unchanged.
func CropSilences(path string, minSilence, keepPad float64) (*CropResult, error) {
	w, err := ReadWAV(path)
	if err != nil {
		return nil, err
	}
	originalDuration := w.Duration()

	regions := detectSilences(w, DefaultSilenceThresholdDb, minSilence)
	if len(regions) == 0 {
		log.Printf("[SilenceCropper] %s: nothing to crop", path)
		return &CropResult{
			OutputPath:       path,
			OriginalDuration: originalDuration,
			NewDuration:      originalDuration,
		}, nil
	}

	keeps := keepRanges(regions, originalDuration, keepPad)

	out := &WAV{SampleRate: w.SampleRate, NumChannels: w.NumChannels}
	for _, k := range keeps {
		startFrame := int(k.Start * float64(w.SampleRate))
		endFrame := int((k.Start + k.Duration) * float64(w.SampleRate))
		if endFrame > w.Frames() {
			endFrame = w.Frames()
		}
		if startFrame >= endFrame {
			continue
		}
		out.Samples = append(out.Samples, w.Samples[startFrame*w.NumChannels:endFrame*w.NumChannels]...)
	}

	outputPath := croppedPath(path)
	if err := WriteWAV(outputPath, out); err != nil {
		return nil, err
	}

	newDuration := out.Duration()
	log.Printf("[SilenceCropper] %s: cropped %d silences, %.1fs -> %.1fs (saved %.1fs)",
		path, len(regions), originalDuration, newDuration, originalDuration-newDuration)

	return &CropResult{
		OutputPath:       outputPath,
		OriginalDuration: originalDuration,
		NewDuration:      newDuration,
		RegionsCropped:   len(regions),
		TimeSaved:        originalDuration - newDuration,
	}, nil
}

// keepRanges computes the complement of the silence list over the source
// timeline. Half of pad is kept before each cut and half after it; ranges
// come out in order and reconstruct every non-silent sample exactly once.
func keepRanges(regions []SilenceRegion, totalDuration, pad float64) []KeepRange {
	var keeps []KeepRange
	cursor := 0.0
	half := pad / 2

	for _, r := range regions {
		keepEnd := r.Start + half
		if keepEnd > totalDuration {
			keepEnd = totalDuration
		}
		if keepEnd > cursor {
			keeps = append(keeps, KeepRange{Start: cursor, Duration: keepEnd - cursor})
		}
		next := r.End - half
		if next < 0 {
			next = 0
		}
		if next > cursor {
			cursor = next
		}
	}

	if totalDuration > cursor {
		keeps = append(keeps, KeepRange{Start: cursor, Duration: totalDuration - cursor})
	}
	return keeps
}

func croppedPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s_cropped%s", base, ext)
}
