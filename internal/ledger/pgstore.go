// AngelaMos | 2026
// pgstore.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/billing-service/internal/core"
)

type pgStore struct {
	db core.DBTX
}

func NewStore(db core.DBTX) Store {
	return &pgStore{db: db}
}

func (s *pgStore) GetByID(ctx context.Context, userID string) (*Ledger, error) {
	query := `
		SELECT user_id, token_balance, entitlement_points,
		       plan_one_month, plan_six_months, last_refill_at,
		       created_at, updated_at
		FROM user_ledgers
		WHERE user_id = $1`

	var rec Ledger
	err := s.db.GetContext(ctx, &rec, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get ledger: %w", ErrUnknownUser)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}

	return &rec, nil
}

func (s *pgStore) Create(
	ctx context.Context,
	userID string,
	balance int,
	now time.Time,
) error {
	query := `
		INSERT INTO user_ledgers (user_id, token_balance, last_refill_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, userID, balance, now); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create ledger: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create ledger: %w", err)
	}

	return nil
}

func (s *pgStore) ApplyPurchase(
	ctx context.Context,
	userID string,
	effect Effect,
	now time.Time,
) error {
	oneMonth, sixMonths := effect.planFlags()

	query := `
		UPDATE user_ledgers
		SET token_balance = $2,
		    entitlement_points = $3,
		    plan_one_month = $4,
		    plan_six_months = $5,
		    last_refill_at = GREATEST(last_refill_at, $6),
		    updated_at = NOW()
		WHERE user_id = $1`

	result, err := s.db.ExecContext(ctx, query,
		userID,
		effect.TokenBalance,
		effect.Points,
		oneMonth,
		sixMonths,
		now,
	)
	if err != nil {
		return fmt.Errorf("apply purchase: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply purchase: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("apply purchase: %w", ErrUnknownUser)
	}

	return nil
}

func (s *pgStore) RefillEntitled(
	ctx context.Context,
	cutoff, now time.Time,
	allotment int,
) ([]EntitledRefill, error) {
	query := `
		UPDATE user_ledgers
		SET token_balance = $3,
		    entitlement_points = entitlement_points - 1,
		    plan_one_month = CASE
		        WHEN entitlement_points - 1 <= 0 THEN FALSE
		        ELSE plan_one_month END,
		    plan_six_months = CASE
		        WHEN entitlement_points - 1 <= 0 THEN FALSE
		        ELSE plan_six_months END,
		    last_refill_at = $2,
		    updated_at = NOW()
		WHERE entitlement_points > 0
		  AND last_refill_at <= $1
		RETURNING user_id, entitlement_points`

	var refilled []EntitledRefill
	err := s.db.SelectContext(ctx, &refilled, query, cutoff, now, allotment)
	if err != nil {
		return nil, fmt.Errorf("refill entitled: %w", err)
	}

	return refilled, nil
}

func (s *pgStore) RefillNormal(
	ctx context.Context,
	cutoff, now time.Time,
	allotment int,
) (int, error) {
	query := `
		UPDATE user_ledgers
		SET token_balance = $3,
		    last_refill_at = $2,
		    updated_at = NOW()
		WHERE entitlement_points = 0
		  AND last_refill_at <= $1`

	result, err := s.db.ExecContext(ctx, query, cutoff, now, allotment)
	if err != nil {
		return 0, fmt.Errorf("refill normal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("refill normal: %w", err)
	}

	return int(rows), nil
}

func (s *pgStore) ExpireNow(
	ctx context.Context,
	userID string,
	allotment int,
) error {
	query := `
		UPDATE user_ledgers
		SET token_balance = $2,
		    entitlement_points = 0,
		    plan_one_month = FALSE,
		    plan_six_months = FALSE,
		    updated_at = NOW()
		WHERE user_id = $1`

	result, err := s.db.ExecContext(ctx, query, userID, allotment)
	if err != nil {
		return fmt.Errorf("expire ledger: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("expire ledger: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("expire ledger: %w", ErrUnknownUser)
	}

	return nil
}

func (s *pgStore) ListStaleEntitled(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT l.user_id
		FROM user_ledgers l
		LEFT JOIN user_capabilities c
		       ON c.user_id = l.user_id AND c.capability = $1
		WHERE l.entitlement_points = 0
		  AND (c.capability IS NOT NULL
		       OR l.plan_one_month
		       OR l.plan_six_months)`

	var userIDs []string
	err := s.db.SelectContext(ctx, &userIDs, query, CapabilityEntitled)
	if err != nil {
		return nil, fmt.Errorf("list stale entitled: %w", err)
	}

	return userIDs, nil
}

func (s *pgStore) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT COUNT(*) AS total_users,
		       COUNT(*) FILTER (WHERE entitlement_points > 0) AS entitled_users,
		       COALESCE(SUM(token_balance), 0) AS total_tokens,
		       COALESCE(AVG(token_balance), 0) AS avg_tokens
		FROM user_ledgers`

	var stats Stats
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}

	return &stats, nil
}

func (s *pgStore) GrantCapability(
	ctx context.Context,
	userID, capability string,
) error {
	query := `
		INSERT INTO user_capabilities (user_id, capability)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, userID, capability); err != nil {
		return fmt.Errorf("grant capability: %w", err)
	}

	return nil
}

func (s *pgStore) RevokeCapability(
	ctx context.Context,
	userID, capability string,
) error {
	query := `
		DELETE FROM user_capabilities
		WHERE user_id = $1 AND capability = $2`

	if _, err := s.db.ExecContext(ctx, query, userID, capability); err != nil {
		return fmt.Errorf("revoke capability: %w", err)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
