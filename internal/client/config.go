package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type bootstrapConfig struct {
	APIURL string `json:"apiUrl"`
}

// DiscoverEndpoint fetches the backend endpoint URL from a bootstrap
// config endpoint. It is fetched once at startup and cached by the
// caller; a missing URL is a fatal configuration error, not something
// to retry.
func DiscoverEndpoint(ctx context.Context, configURL string) (string, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch bootstrap config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bootstrap config endpoint returned status %d", resp.StatusCode)
	}

	var cfg bootstrapConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return "", err
	}
	if cfg.APIURL == "" {
		return "", fmt.Errorf("bootstrap config has no API URL; set PUBLIC_API_URL on the server")
	}
	return cfg.APIURL, nil
}
