package visit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL profile store adapter
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the service's requirements.
var _ ProfileRepository = (*Repository)(nil)

// NewRepository creates a new profile repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const profileColumns = `
	visitor_id, linked_id, first_seen_at, last_seen_at, visit_count,
	last_ip, last_user_agent, risk_label, risk_score, confidence_score,
	last_request_id, raw_fp_result, raw_client_signals, updated_at
`

// GetByVisitorID does a point lookup by the stable primary key. A miss
// returns (nil, nil).
func (r *Repository) GetByVisitorID(ctx context.Context, visitorID string) (*VisitorProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM visitor_profiles
		WHERE visitor_id = $1
	`

	profile, err := scanProfile(r.db.QueryRow(ctx, query, visitorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// GetLatestByLinkedID returns the most recently seen profile sharing the
// given linked identifier, or (nil, nil) if none exists.
func (r *Repository) GetLatestByLinkedID(ctx context.Context, linkedID string) (*VisitorProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM visitor_profiles
		WHERE linked_id = $1
		ORDER BY last_seen_at DESC
		LIMIT 1
	`

	profile, err := scanProfile(r.db.QueryRow(ctx, query, linkedID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// ListRecent returns up to limit profiles ordered by last seen descending
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*VisitorProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM visitor_profiles
		ORDER BY last_seen_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*VisitorProfile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	return profiles, rows.Err()
}

// CountRecentByIP counts profiles whose last known address matches ip and
// whose last visit falls inside the trailing window, excluding future
// timestamps.
func (r *Repository) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM visitor_profiles
		WHERE last_ip = $1
		  AND last_seen_at >= $2
		  AND last_seen_at <= NOW()
	`

	var count int
	if err := r.db.QueryRow(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Upsert idempotently writes a profile keyed by visitor id. first_seen_at
// is only ever written on insert; the conflict branch leaves it untouched.
func (r *Repository) Upsert(ctx context.Context, profile *VisitorProfile) error {
	fpJSON, err := json.Marshal(profile.Fingerprint)
	if err != nil {
		return err
	}
	signalsJSON, err := json.Marshal(profile.Signals)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO visitor_profiles (
			visitor_id, linked_id, first_seen_at, last_seen_at, visit_count,
			last_ip, last_user_agent, risk_label, risk_score, confidence_score,
			last_request_id, raw_fp_result, raw_client_signals, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (visitor_id) DO UPDATE SET
			linked_id = EXCLUDED.linked_id,
			last_seen_at = GREATEST(visitor_profiles.last_seen_at, EXCLUDED.last_seen_at),
			visit_count = EXCLUDED.visit_count,
			last_ip = EXCLUDED.last_ip,
			last_user_agent = EXCLUDED.last_user_agent,
			risk_label = EXCLUDED.risk_label,
			risk_score = EXCLUDED.risk_score,
			confidence_score = EXCLUDED.confidence_score,
			last_request_id = EXCLUDED.last_request_id,
			raw_fp_result = EXCLUDED.raw_fp_result,
			raw_client_signals = EXCLUDED.raw_client_signals,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.Exec(ctx, query,
		profile.VisitorID,
		profile.LinkedID,
		profile.FirstSeenAt,
		profile.LastSeenAt,
		profile.VisitCount,
		profile.LastIP,
		profile.LastUserAgent,
		profile.RiskLabel,
		profile.RiskScore,
		profile.ConfidenceScore,
		profile.LastRequestID,
		fpJSON,
		signalsJSON,
		profile.UpdatedAt,
	)

	return err
}

func scanProfile(row pgx.Row) (*VisitorProfile, error) {
	var profile VisitorProfile
	var linkedID, lastIP, lastUserAgent, lastRequestID sql.NullString
	var confidenceScore sql.NullFloat64
	var fpJSON, signalsJSON []byte

	err := row.Scan(
		&profile.VisitorID,
		&linkedID,
		&profile.FirstSeenAt,
		&profile.LastSeenAt,
		&profile.VisitCount,
		&lastIP,
		&lastUserAgent,
		&profile.RiskLabel,
		&profile.RiskScore,
		&confidenceScore,
		&lastRequestID,
		&fpJSON,
		&signalsJSON,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if linkedID.Valid {
		profile.LinkedID = &linkedID.String
	}
	if lastIP.Valid {
		profile.LastIP = &lastIP.String
	}
	if lastUserAgent.Valid {
		profile.LastUserAgent = &lastUserAgent.String
	}
	if lastRequestID.Valid {
		profile.LastRequestID = &lastRequestID.String
	}
	if confidenceScore.Valid {
		profile.ConfidenceScore = &confidenceScore.Float64
	}

	if len(fpJSON) > 0 {
		if err := json.Unmarshal(fpJSON, &profile.Fingerprint); err != nil {
			profile.Fingerprint = nil
		}
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &profile.Signals); err != nil {
			profile.Signals = nil
		}
	}

	return &profile, nil
}
