// AngelaMos | 2026
// repository.go

package linking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/socialsync/internal/core"
)

const (
	constraintIssuedCode       = "link_requests_issued_code"
	constraintOneIssued        = "link_requests_one_issued_per_user"
	constraintPlatformIdentity = "social_accounts_platform_identity_key"
	constraintUserPlatform     = "social_accounts_user_platform_key"
)

type Repository interface {
	// Issue revokes any issued request for the same user and platform and
	// inserts req in one transaction. A code hash collision with another
	// issued request, or a concurrent issue for the same pair, returns
	// core.ErrDuplicateKey.
	Issue(ctx context.Context, req *LinkRequest) error
	FindIssuedByCode(
		ctx context.Context,
		platform Platform,
		codeHash string,
	) (*LinkRequest, error)
	MarkExpired(ctx context.Context, id string) error
	// Consume moves an issued, unexpired request to consumed and binds
	// platformUserID to the request's user. Exactly one concurrent caller
	// can consume a given request. A user already bound to a different
	// identity on the platform gets ErrUnlinkRequired and the request stays
	// issued.
	Consume(
		ctx context.Context,
		requestID, platformUserID string,
		now time.Time,
	) (*LinkResult, error)
	Revoke(ctx context.Context, userID string, platform Platform) error
	ListAccounts(ctx context.Context, userID string) ([]SocialAccount, error)
	FindAccountByPlatformUser(
		ctx context.Context,
		platform Platform,
		platformUserID string,
	) (*SocialAccount, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const linkRequestColumns = `
	id, user_id, platform, code_hash, state, issued_at, expires_at,
	consumed_at, platform_user_id, updated_at`

func (r *repository) Issue(ctx context.Context, req *LinkRequest) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		revoke := `
			UPDATE link_requests
			SET state = 'revoked', updated_at = NOW()
			WHERE user_id = $1 AND platform = $2 AND state = 'issued'`

		if _, err := tx.ExecContext(ctx, revoke, req.UserID, req.Platform); err != nil {
			return fmt.Errorf("revoke prior link requests: %w", err)
		}

		insert := `
			INSERT INTO link_requests (
				id, user_id, platform, code_hash, state, issued_at, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING updated_at`

		err := tx.GetContext(ctx, &req.UpdatedAt, insert,
			req.ID,
			req.UserID,
			req.Platform,
			req.CodeHash,
			req.State,
			req.IssuedAt,
			req.ExpiresAt,
		)
		if constraint, ok := core.IsDuplicateKey(err); ok &&
			(constraint == constraintIssuedCode || constraint == constraintOneIssued) {
			return fmt.Errorf("insert link request: %w", core.ErrDuplicateKey)
		}
		if err != nil {
			return fmt.Errorf("insert link request: %w", err)
		}

		return nil
	})
}

func (r *repository) FindIssuedByCode(
	ctx context.Context,
	platform Platform,
	codeHash string,
) (*LinkRequest, error) {
	query := `SELECT` + linkRequestColumns + `
		FROM link_requests
		WHERE platform = $1 AND code_hash = $2 AND state = 'issued'`

	var req LinkRequest
	err := r.db.GetContext(ctx, &req, query, platform, codeHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find link request: %w", ErrLinkNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find link request: %w", err)
	}

	return &req, nil
}

func (r *repository) MarkExpired(ctx context.Context, id string) error {
	return markExpired(ctx, r.db, id)
}

func markExpired(ctx context.Context, db core.DBTX, id string) error {
	query := `
		UPDATE link_requests
		SET state = 'expired', updated_at = NOW()
		WHERE id = $1 AND state = 'issued'`

	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("expire link request: %w", err)
	}
	return nil
}

func (r *repository) Consume(
	ctx context.Context,
	requestID, platformUserID string,
	now time.Time,
) (*LinkResult, error) {
	var (
		result  *LinkResult
		expired bool
	)

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		lock := `SELECT` + linkRequestColumns + `
			FROM link_requests
			WHERE id = $1 AND state = 'issued'
			FOR UPDATE`

		var req LinkRequest
		err := tx.GetContext(ctx, &req, lock, requestID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock link request: %w", ErrLinkNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock link request: %w", err)
		}

		if req.ExpiredAt(now) {
			expired = true
			return markExpired(ctx, tx, req.ID)
		}

		existing, err := findAccount(ctx, tx, req.Platform, platformUserID, true)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if existing != nil && existing.UserID != req.UserID {
			return fmt.Errorf("consume link request: %w", ErrLinkConflict)
		}

		consume := `
			UPDATE link_requests
			SET state = 'consumed', consumed_at = $2, platform_user_id = $3,
			    updated_at = NOW()
			WHERE id = $1 AND state = 'issued'`

		res, err := tx.ExecContext(ctx, consume, req.ID, now, platformUserID)
		if err != nil {
			return fmt.Errorf("consume link request: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("consume link request: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("consume link request: %w", ErrLinkNotFound)
		}

		if existing != nil {
			result = &LinkResult{Status: StatusAlreadyLinked, Account: existing}
			return nil
		}

		account, err := insertAccount(ctx, tx, &SocialAccount{
			ID:             uuid.New().String(),
			UserID:         req.UserID,
			Platform:       req.Platform,
			PlatformUserID: platformUserID,
			LinkedAt:       now,
		})
		if err != nil {
			return err
		}

		result = &LinkResult{Status: StatusLinked, Account: account}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		return nil, fmt.Errorf("consume link request: %w", ErrLinkExpired)
	}

	return result, nil
}

func insertAccount(
	ctx context.Context,
	db core.DBTX,
	account *SocialAccount,
) (*SocialAccount, error) {
	query := `
		INSERT INTO social_accounts (id, user_id, platform, platform_user_id, linked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, platform, platform_user_id, linked_at`

	var out SocialAccount
	err := db.GetContext(ctx, &out, query,
		account.ID,
		account.UserID,
		account.Platform,
		account.PlatformUserID,
		account.LinkedAt,
	)
	if constraint, ok := core.IsDuplicateKey(err); ok {
		switch constraint {
		case constraintPlatformIdentity:
			return nil, fmt.Errorf("insert social account: %w", ErrLinkConflict)
		case constraintUserPlatform:
			return nil, fmt.Errorf("insert social account: %w", ErrUnlinkRequired)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("insert social account: %w", err)
	}

	return &out, nil
}

func (r *repository) Revoke(
	ctx context.Context,
	userID string,
	platform Platform,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		unlink := `DELETE FROM social_accounts WHERE user_id = $1 AND platform = $2`
		if _, err := tx.ExecContext(ctx, unlink, userID, platform); err != nil {
			return fmt.Errorf("delete social account: %w", err)
		}

		revoke := `
			UPDATE link_requests
			SET state = 'revoked', updated_at = NOW()
			WHERE user_id = $1 AND platform = $2 AND state = 'issued'`
		if _, err := tx.ExecContext(ctx, revoke, userID, platform); err != nil {
			return fmt.Errorf("revoke link requests: %w", err)
		}

		return nil
	})
}

func (r *repository) ListAccounts(
	ctx context.Context,
	userID string,
) ([]SocialAccount, error) {
	query := `
		SELECT id, user_id, platform, platform_user_id, linked_at
		FROM social_accounts
		WHERE user_id = $1
		ORDER BY linked_at DESC`

	accounts := []SocialAccount{}
	if err := r.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}

	return accounts, nil
}

func (r *repository) FindAccountByPlatformUser(
	ctx context.Context,
	platform Platform,
	platformUserID string,
) (*SocialAccount, error) {
	return findAccount(ctx, r.db, platform, platformUserID, false)
}

func findAccount(
	ctx context.Context,
	db core.DBTX,
	platform Platform,
	platformUserID string,
	forUpdate bool,
) (*SocialAccount, error) {
	query := `
		SELECT id, user_id, platform, platform_user_id, linked_at
		FROM social_accounts
		WHERE platform = $1 AND platform_user_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var account SocialAccount
	err := db.GetContext(ctx, &account, query, platform, platformUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find social account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find social account: %w", err)
	}

	return &account, nil
}
