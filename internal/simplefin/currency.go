package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// A source may report a custom currency as a URL pointing at a descriptor
// document of the form {"name": ..., "abbr": ...}. The resolver fetches the
// descriptor and substitutes its name, caching per URL so a statement full
// of the same custom currency costs one request.
type currencyResolver struct {
	httpClient *http.Client
	cache      map[string]string
}

func newCurrencyResolver(httpClient *http.Client) *currencyResolver {
	return &currencyResolver{
		httpClient: httpClient,
		cache:      make(map[string]string),
	}
}

func (r *currencyResolver) resolve(ctx context.Context, currency string) (string, error) {
	if !strings.HasPrefix(currency, "http://") && !strings.HasPrefix(currency, "https://") {
		return currency, nil
	}
	if name, ok := r.cache[currency]; ok {
		return name, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, currency, nil)
	if err != nil {
		return "", fmt.Errorf("resolve currency %q: %w", currency, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve currency %q: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve currency %q: unexpected status %d", currency, resp.StatusCode)
	}

	var descriptor struct {
		Name string `json:"name"`
		Abbr string `json:"abbr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&descriptor); err != nil {
		return "", fmt.Errorf("resolve currency %q: decode descriptor: %w", currency, err)
	}
	if descriptor.Name == "" {
		return "", fmt.Errorf("resolve currency %q: descriptor has no name", currency)
	}

	r.cache[currency] = descriptor.Name
	return descriptor.Name, nil
}
