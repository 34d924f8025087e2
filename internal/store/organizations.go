package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FindOrganization looks up an organization by its natural key, the exact
// (domain, name) pair. A partial match is a miss. Returns ErrNotFound when
// no row matches.
func (t *Tx) FindOrganization(ctx context.Context, domain, name string) (*OrganizationRow, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, domain, name, sfin_url, external_id, url
		FROM organizations
		WHERE domain = ? AND name = ?`,
		domain, name)

	var org OrganizationRow
	err := row.Scan(&org.ID, &org.Domain, &org.Name, &org.SfinURL, &org.ExternalID, &org.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindOrganization: %w", err)
	}
	return &org, nil
}

// InsertOrganization persists a new organization and returns its surrogate id.
func (t *Tx) InsertOrganization(ctx context.Context, org *OrganizationRow) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO organizations (domain, name, sfin_url, external_id, url)
		VALUES (?, ?, ?, ?, ?)`,
		org.Domain, org.Name, org.SfinURL, org.ExternalID, org.URL)
	if err != nil {
		return 0, fmt.Errorf("InsertOrganization: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertOrganization: last insert id: %w", err)
	}
	return id, nil
}

// UpdateOrganization overwrites every field of the row identified by org.ID.
func (t *Tx) UpdateOrganization(ctx context.Context, org *OrganizationRow) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE organizations
		SET domain = ?, name = ?, sfin_url = ?, external_id = ?, url = ?
		WHERE id = ?`,
		org.Domain, org.Name, org.SfinURL, org.ExternalID, org.URL, org.ID)
	if err != nil {
		return fmt.Errorf("UpdateOrganization: %w", err)
	}
	return nil
}

// CountOrganizations reports the number of persisted organizations.
func (t *Tx) CountOrganizations(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountOrganizations: %w", err)
	}
	return n, nil
}
