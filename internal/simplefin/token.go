package simplefin

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ClaimAccessURL exchanges a one-time setup token for a durable access URL.
// The token is the base64-encoded claim URL; claiming is a single POST whose
// response body is the access URL with credentials embedded. A claim URL can
// be used exactly once. httpClient may be nil to use http.DefaultClient.
func ClaimAccessURL(ctx context.Context, httpClient *http.Client, setupToken string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(setupToken))
	if err != nil {
		return "", fmt.Errorf("ClaimAccessURL: decode setup token: %w", err)
	}
	claimURL := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(claimURL, "http://") && !strings.HasPrefix(claimURL, "https://") {
		return "", fmt.Errorf("ClaimAccessURL: setup token does not decode to a URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("ClaimAccessURL: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ClaimAccessURL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("ClaimAccessURL: claim rejected (403): if this token was not claimed before, it may be compromised")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ClaimAccessURL: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ClaimAccessURL: read response: %w", err)
	}
	accessURL := strings.TrimSpace(string(body))
	if accessURL == "" {
		return "", fmt.Errorf("ClaimAccessURL: empty access URL in response")
	}
	return accessURL, nil
}
