package storage

import "testing"

func TestValidExt(t *testing.T) {
	valid := []string{"rec.m4a", "REC.M4A", "meeting.wav", "note.mp3", "call.caf"}
	for _, name := range valid {
		if !ValidExt(name) {
			t.Errorf("ValidExt(%q) = false, want true", name)
		}
	}
	invalid := []string{"video.mp4", "doc.pdf", "noext", "archive.zip"}
	for _, name := range invalid {
		if ValidExt(name) {
			t.Errorf("ValidExt(%q) = true, want false", name)
		}
	}
}
