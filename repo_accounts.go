package registration

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateAccountSQL flips a pending account to active and consumes its key
// in a single statement. Only one caller can match a given key.
var ActivateAccountSQL = `UPDATE "accounts"
SET
	"is_active" = ?,
	"activation_key" = ?,
	"activated_at" = ?,
	"updated_at" = ?
WHERE
	"activation_key" = ?
AND "is_active" = ?
AND "created_at" > ?
RETURNING *;`

// SetPasswordSQL replaces the password hash of an account.
var SetPasswordSQL = `UPDATE "accounts"
SET
	"password_hash" = ?,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`

// Accounts is the account store contract.
type Accounts interface {
	Insert(ctx context.Context, account *Account) (*Account, error)
	InsertTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByActivationKey(ctx context.Context, key string) (*Account, error)
	ConditionalActivate(ctx context.Context, key string, issuedAfter, at time.Time) (*Account, error)
	ConditionalActivateTx(ctx context.Context, tx bun.IDB, key string, issuedAfter, at time.Time) (*Account, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Account, error)
	ListPending(ctx context.Context) ([]*Account, error)
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository returns the Bun backed store.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Insert(ctx context.Context, account *Account) (*Account, error) {
	return a.InsertTx(ctx, a.db, account)
}

// InsertTx inserts the account. The unique constraint on email is the
// authority for duplicates, a violation maps to ErrDuplicateEmail.
func (a *accounts) InsertTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account == nil {
		return nil, goerrors.New("account is required", goerrors.CategoryBadInput)
	}

	prepareAccountDefaults(account, time.Now)

	if _, err := tx.NewInsert().Model(account).Returning("*").Exec(ctx); err != nil {
		if IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeError(err, "failed to insert account")
	}

	return account, nil
}

func (a *accounts) GetByID(ctx context.Context, id string) (*Account, error) {
	record, err := a.Repository.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err, "failed to retrieve account")
	}
	return record, nil
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.findOne(ctx, tx, "email", NormalizeEmail(email))
}

// FindByActivationKey only looks up strings with the key shape.
func (a *accounts) FindByActivationKey(ctx context.Context, key string) (*Account, error) {
	if !IsActivationKey(key) {
		return nil, ErrAccountNotFound
	}
	return a.findOne(ctx, a.db, "activation_key", key)
}

func (a *accounts) ConditionalActivate(ctx context.Context, key string, issuedAfter, at time.Time) (*Account, error) {
	return a.ConditionalActivateTx(ctx, a.db, key, issuedAfter, at)
}

// ConditionalActivateTx returns ErrAccountNotFound when no pending account
// matched, which is what every caller but the first one observes.
func (a *accounts) ConditionalActivateTx(ctx context.Context, tx bun.IDB, key string, issuedAfter, at time.Time) (*Account, error) {
	if !IsActivationKey(key) {
		return nil, ErrAccountNotFound
	}

	record := &Account{}
	err := tx.NewRaw(
		ActivateAccountSQL,
		true,
		ActivatedSentinel,
		at.UTC(),
		at.UTC(),
		key,
		false,
		issuedAfter.UTC(),
	).Scan(ctx, record)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err, "failed to activate account")
	}

	return record, nil
}

func (a *accounts) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Account, error) {
	records := []*Account{}
	if len(ids) == 0 {
		return records, nil
	}

	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		OrderExpr("?TableAlias.email ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, storeError(err, "failed to list accounts")
	}
	return records, nil
}

func (a *accounts) ListPending(ctx context.Context) ([]*Account, error) {
	records := []*Account{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.is_active = ?", false).
		Where("?TableAlias.activation_key IS NOT NULL").
		Where("?TableAlias.activation_key <> ?", ActivatedSentinel).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, storeError(err, "failed to list pending accounts")
	}
	return records, nil
}

func (a *accounts) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, SetPasswordSQL, passwordHash, time.Now().UTC(), id.String())
	if err != nil {
		return storeError(err, "failed to update password")
	}

	if len(res) == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// TrackLogin records a successful login, e.g. the session opened on activation.
func (a *accounts) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("last_login_at = ?", at.UTC()).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to track login")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (a *accounts) findOne(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err, "failed to retrieve account")
	}
	return record, nil
}

func prepareAccountDefaults(record *Account, now func() time.Time) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now().UTC()
	}

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) ||
		repository.IsRecordNotFound(err) ||
		strings.Contains(err.Error(), "no rows in result set")
}
