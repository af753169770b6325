package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Typed failures for audio file handling. Callers match with errors.Is.
var (
	ErrFileNotFound   = errors.New("audio file not found")
	ErrUnreadableAudio = errors.New("audio file is not readable PCM audio")
	ErrNoAudioTrack   = errors.New("audio file contains no audio track")
)

// ExportError wraps a failure while writing a processed audio file.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("audio export to %s failed: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// WAV holds decoded 16-bit PCM audio. Samples are interleaved by channel.
type WAV struct {
	SampleRate  int
	NumChannels int
	Samples     []int16
}

// Frames returns the number of sample frames (samples per channel).
func (w *WAV) Frames() int {
	if w.NumChannels == 0 {
		return 0
	}
	return len(w.Samples) / w.NumChannels
}

// Duration returns the audio duration in seconds.
func (w *WAV) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(w.Frames()) / float64(w.SampleRate)
}

// ReadWAV decodes a 16-bit PCM RIFF/WAVE file.
func ReadWAV(path string) (*WAV, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadableAudio, err)
	}

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnreadableAudio)
	}

	var (
		sampleRate  int
		numChannels int
		bitsPerSamp int
		audioFormat int
		pcm         []byte
		sawFmt      bool
	)

	// Walk RIFF chunks. Chunks are word-aligned; odd sizes carry a pad byte.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrUnreadableAudio, id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnreadableAudio)
			}
			audioFormat = int(binary.LittleEndian.Uint16(data[body : body+2]))
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSamp = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !sawFmt {
		return nil, fmt.Errorf("%w: no fmt chunk", ErrUnreadableAudio)
	}
	if audioFormat != 1 || bitsPerSamp != 16 {
		return nil, fmt.Errorf("%w: unsupported format %d (%d-bit), only 16-bit PCM is handled",
			ErrUnreadableAudio, audioFormat, bitsPerSamp)
	}
	if numChannels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("%w: invalid fmt chunk (channels=%d rate=%d)", ErrUnreadableAudio, numChannels, sampleRate)
	}
	if len(pcm) < 2 {
		return nil, fmt.Errorf("%w: empty data chunk", ErrNoAudioTrack)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}

	return &WAV{
		SampleRate:  sampleRate,
		NumChannels: numChannels,
		Samples:     samples,
	}, nil
}

// WriteWAV encodes w as a 16-bit PCM RIFF/WAVE file at path.
func WriteWAV(path string, w *WAV) error {
	dataSize := len(w.Samples) * 2
	blockAlign := w.NumChannels * 2
	byteRate := w.SampleRate * blockAlign

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(w.NumChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range w.Samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return &ExportError{Path: path, Err: err}
	}
	return nil
}
