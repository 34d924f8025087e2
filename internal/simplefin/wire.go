// Package simplefin talks the SimpleFIN wire protocol: it claims setup
// tokens, fetches account data over HTTP Basic Auth, and converts the raw
// payload into validated snapshots for the reconciler.
package simplefin

import "encoding/json"

// Wire-format structs for the /accounts response. Field aliases and unix
// timestamps follow the protocol; amounts come as decimal strings.

type wireAccountSet struct {
	Errors   []string      `json:"errors"`
	Accounts []wireAccount `json:"accounts"`
}

type wireOrganization struct {
	Domain  string `json:"domain"`
	SfinURL string `json:"sfin-url"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	ID      string `json:"id"`
}

type wireAccount struct {
	Org              wireOrganization  `json:"org"`
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Currency         string            `json:"currency"`
	Balance          string            `json:"balance"`
	AvailableBalance string            `json:"available-balance"`
	BalanceDate      int64             `json:"balance-date"`
	Transactions     []wireTransaction `json:"transactions"`
	Extra            json.RawMessage   `json:"extra"`
}

type wireTransaction struct {
	ID           string          `json:"id"`
	Posted       int64           `json:"posted"` // 0 = not posted yet
	Amount       string          `json:"amount"`
	Description  string          `json:"description"`
	TransactedAt int64           `json:"transacted_at"`
	Pending      *bool           `json:"pending"`
	Extra        json.RawMessage `json:"extra"`
}
