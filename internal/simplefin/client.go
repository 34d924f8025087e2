package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/simplefin-sync/internal/logger"
	"github.com/dvloznov/simplefin-sync/internal/reconcile"
	"github.com/dvloznov/simplefin-sync/internal/snapshot"
)

const defaultTimeout = 30 * time.Second

var _ reconcile.Source = (*Client)(nil)

// Client fetches account data from a SimpleFIN server over HTTP Basic Auth.
// It implements reconcile.Source.
type Client struct {
	auth       Auth
	httpClient *http.Client
	currencies *currencyResolver
}

// NewClient creates a client with a default HTTP client.
func NewClient(auth Auth) *Client {
	return NewClientWithHTTP(auth, &http.Client{Timeout: defaultTimeout})
}

// NewClientWithHTTP creates a client with a caller-supplied HTTP client.
func NewClientWithHTTP(auth Auth, httpClient *http.Client) *Client {
	return &Client{
		auth:       auth,
		httpClient: httpClient,
		currencies: newCurrencyResolver(httpClient),
	}
}

// Fetch retrieves account snapshots with transactions in [since, until].
// The server reports per-account data plus a top-level errors array; any
// reported error fails the fetch, so the caller never reconciles a payload
// the server itself flagged.
func (c *Client) Fetch(ctx context.Context, since, until time.Time, includePending bool) ([]snapshot.Account, error) {
	log := logger.FromContext(ctx)

	q := url.Values{}
	q.Set("start-date", strconv.FormatInt(since.Unix(), 10))
	q.Set("end-date", strconv.FormatInt(until.Unix(), 10))
	if includePending {
		q.Set("pending", "1")
	}
	endpoint := c.auth.BaseURL() + "/accounts?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	req.SetBasicAuth(c.auth.Username, c.auth.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Fetch: unexpected status %d from %s", resp.StatusCode, c.auth.Host)
	}

	var set wireAccountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("Fetch: decode response: %w", err)
	}
	if len(set.Errors) > 0 {
		return nil, fmt.Errorf("Fetch: server reported errors: %s", strings.Join(set.Errors, "; "))
	}

	accounts := make([]snapshot.Account, 0, len(set.Accounts))
	for _, w := range set.Accounts {
		acc, err := c.convertAccount(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("Fetch: %w", err)
		}
		accounts = append(accounts, acc)
	}

	log.Info().
		Int("accounts", len(accounts)).
		Time("since", since).
		Time("until", until).
		Bool("include_pending", includePending).
		Msg("Fetched account snapshots")

	return accounts, nil
}
