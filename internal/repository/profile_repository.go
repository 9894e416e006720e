package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// ProfileRepo reads public bidder profiles.  The profiles table belongs to
// the marketplace's account service; the engine never writes it.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo constructs a ProfileRepo given a DB handle.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Profiles loads the profiles for ids with a single IN query.
func (r *ProfileRepo) Profiles(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT id, display_name, is_dealer, dealer_name FROM profiles WHERE id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p      model.Profile
			dealer sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.IsDealer, &dealer); err != nil {
			return nil, err
		}
		p.DealerName = dealer.String
		out[p.ID] = p
	}
	return out, rows.Err()
}
