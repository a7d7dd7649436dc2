// Package postgres provides a CredentialStore backed by PostgreSQL through
// pgx. The consume operations are single SQL statements, so the delete-and-
// mutate steps they promise are atomic without explicit transactions.
//
// The expected schema ships in schema.sql.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castlefell/authcore"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, display_name, password_hash, provider,
	COALESCE(google_id, ''), confirmed,
	COALESCE(reset_token_hash, ''), COALESCE(reset_token_expires, 'epoch'::timestamptz),
	created_at, updated_at`

// Adapter implements [authcore.CredentialStore] over a pgx connection pool.
type Adapter struct {
	pool *pgxpool.Pool
}

var _ authcore.CredentialStore = (*Adapter)(nil)

// New returns an [Adapter] using the given pool. The pool stays owned by the
// caller and is not closed by the adapter.
func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

func scanAccount(row pgx.Row) (*authcore.Account, error) {
	var a authcore.Account
	var resetExpires time.Time
	err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Provider,
		&a.GoogleID, &a.Confirmed,
		&a.ResetTokenHash, &resetExpires,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if resetExpires.Unix() != 0 {
		a.ResetTokenExpires = resetExpires
	}
	return &a, nil
}

func (ad *Adapter) findOne(ctx context.Context, query string, arg any) (*authcore.Account, error) {
	account, err := scanAccount(ad.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// FindByEmail looks up an account by normalized email.
func (ad *Adapter) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return ad.findOne(ctx,
		`SELECT `+accountColumns+` FROM auth_accounts WHERE email = $1`,
		authcore.NormalizeEmail(email))
}

// FindByGoogleID looks up an account by Google subject identifier.
func (ad *Adapter) FindByGoogleID(ctx context.Context, googleID string) (*authcore.Account, error) {
	return ad.findOne(ctx,
		`SELECT `+accountColumns+` FROM auth_accounts WHERE google_id = $1`,
		googleID)
}

// FindByResetToken looks up the account holding the given reset token hash.
func (ad *Adapter) FindByResetToken(ctx context.Context, tokenHash string) (*authcore.Account, error) {
	return ad.findOne(ctx,
		`SELECT `+accountColumns+` FROM auth_accounts WHERE reset_token_hash = $1`,
		tokenHash)
}

// Create inserts a new account. The email unique index turns concurrent
// creates for one address into exactly one success.
func (ad *Adapter) Create(ctx context.Context, account *authcore.Account) (*authcore.Account, error) {
	row := ad.pool.QueryRow(ctx, `
		INSERT INTO auth_accounts (email, display_name, password_hash, provider, google_id, confirmed)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING `+accountColumns,
		authcore.NormalizeEmail(account.Email),
		account.DisplayName,
		account.PasswordHash,
		account.Provider,
		account.GoogleID,
		account.Confirmed,
	)

	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, authcore.ErrDuplicateEmail
		}
		return nil, err
	}
	return created, nil
}

// Save persists mutations of an existing account. Email is immutable and is
// deliberately absent from the SET list.
func (ad *Adapter) Save(ctx context.Context, account *authcore.Account) error {
	var resetExpires *time.Time
	if !account.ResetTokenExpires.IsZero() {
		resetExpires = &account.ResetTokenExpires
	}

	tag, err := ad.pool.Exec(ctx, `
		UPDATE auth_accounts
		SET display_name = $1,
		    password_hash = $2,
		    confirmed = $3,
		    google_id = NULLIF($4, ''),
		    reset_token_hash = NULLIF($5, ''),
		    reset_token_expires = $6,
		    updated_at = now()
		WHERE id = $7`,
		account.DisplayName,
		account.PasswordHash,
		account.Confirmed,
		account.GoogleID,
		account.ResetTokenHash,
		resetExpires,
		account.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// ReplaceVerificationToken upserts the account's single outstanding
// verification token.
func (ad *Adapter) ReplaceVerificationToken(ctx context.Context, accountID, tokenHash string, expires time.Time) error {
	tag, err := ad.pool.Exec(ctx, `
		INSERT INTO auth_verification_tokens (account_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
		accountID, tokenHash, expires,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return authcore.ErrAccountNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// ConsumeVerificationToken deletes the token and confirms the owning account
// in one statement. Unknown, expired, and already consumed tokens all come
// back as [authcore.ErrVerificationInvalid].
func (ad *Adapter) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*authcore.Account, error) {
	row := ad.pool.QueryRow(ctx, `
		WITH consumed AS (
			DELETE FROM auth_verification_tokens
			WHERE token_hash = $1
			RETURNING account_id, expires_at
		)
		UPDATE auth_accounts a
		SET confirmed = TRUE, updated_at = now()
		FROM consumed c
		WHERE a.id = c.account_id AND c.expires_at > now()
		RETURNING `+qualifiedAccountColumns("a"))

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrVerificationInvalid
		}
		return nil, err
	}
	return account, nil
}

// ConsumeResetToken clears the matching reset token and returns the account
// with the consumed token's expiry. The row lock taken by the CTE makes
// concurrent consumes of one hash succeed at most once.
func (ad *Adapter) ConsumeResetToken(ctx context.Context, tokenHash string) (*authcore.Account, error) {
	row := ad.pool.QueryRow(ctx, `
		WITH target AS (
			SELECT id, reset_token_expires
			FROM auth_accounts
			WHERE reset_token_hash = $1
			FOR UPDATE
		)
		UPDATE auth_accounts a
		SET reset_token_hash = NULL, reset_token_expires = NULL, updated_at = now()
		FROM target t
		WHERE a.id = t.id
		RETURNING a.id, a.email, a.display_name, a.password_hash, a.provider,
			COALESCE(a.google_id, ''), a.confirmed,
			'', COALESCE(t.reset_token_expires, 'epoch'::timestamptz),
			a.created_at, a.updated_at`,
		tokenHash)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrResetInvalid
		}
		return nil, err
	}
	return account, nil
}

func qualifiedAccountColumns(alias string) string {
	return alias + `.id, ` + alias + `.email, ` + alias + `.display_name, ` +
		alias + `.password_hash, ` + alias + `.provider, ` +
		`COALESCE(` + alias + `.google_id, ''), ` + alias + `.confirmed, ` +
		`COALESCE(` + alias + `.reset_token_hash, ''), ` +
		`COALESCE(` + alias + `.reset_token_expires, 'epoch'::timestamptz), ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
