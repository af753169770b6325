package secrets

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// KeyStore resolves provider API keys. Keys are looked up on every call and
// never cached, so a rotated key takes effect without a restart.
type KeyStore struct {
	// KeyDir optionally points at a directory of <provider>.key files,
	// checked when the environment has no key for the provider.
	KeyDir string
}

// envVarForProvider maps a provider name to its conventional key variable.
func envVarForProvider(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// ReadKey returns the API key for a provider, or an error when none is
// configured anywhere.
func (s *KeyStore) ReadKey(provider string) (string, error) {
	envVar := envVarForProvider(provider)
	if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
		return key, nil
	}

	if s.KeyDir != "" {
		path := filepath.Join(s.KeyDir, provider+".key")
		data, err := os.ReadFile(path)
		if err == nil {
			key := strings.TrimSpace(string(data))
			if key != "" {
				log.Printf("[KeyStore] Using key file for provider %s", provider)
				return key, nil
			}
		}
	}

	return "", fmt.Errorf("no API key for provider %q: set %s or place a key file in the key directory", provider, envVar)
}
