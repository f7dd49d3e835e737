package gemini

import (
	"sync"
	"time"
)

// Config for the Gemini client.
type Config struct {
	APIKey  string        // if empty, falls back to the key set via Configure
	BaseURL string        // default https://generativelanguage.googleapis.com/v1beta
	Model   string        // e.g. "gemini-2.5-pro"
	Timeout time.Duration // http client timeout
}

var (
	configMu      sync.Mutex
	configuredKey string
)

// Configure stores the process-wide API key. Calling it again with the same
// key is a no-op; it is safe to call concurrently.
func Configure(apiKey string) {
	if apiKey == "" {
		return
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configuredKey == apiKey {
		return
	}
	configuredKey = apiKey
}

func configuredAPIKey() string {
	configMu.Lock()
	defer configMu.Unlock()
	return configuredKey
}
