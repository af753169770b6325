package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	s := &KeyStore{}
	key, err := s.ReadKey("openai")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if key != "sk-from-env" {
		t.Errorf("key = %q", key)
	}
}

func TestReadKeyFromKeyFile(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "groq.key"), []byte("gsk-from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	s := &KeyStore{KeyDir: dir}
	key, err := s.ReadKey("groq")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if key != "gsk-from-file" {
		t.Errorf("key = %q, want trimmed file contents", key)
	}
}

func TestReadKeyEnvWinsOverFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "openai.key"), []byte("sk-file"), 0600)

	s := &KeyStore{KeyDir: dir}
	key, _ := s.ReadKey("openai")
	if key != "sk-env" {
		t.Errorf("key = %q, env should win", key)
	}
}

func TestReadKeyMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	s := &KeyStore{KeyDir: t.TempDir()}
	if _, err := s.ReadKey("openai"); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}

func TestEnvVarForProvider(t *testing.T) {
	if got := envVarForProvider("groq"); got != "GROQ_API_KEY" {
		t.Errorf("got %q", got)
	}
}
