package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateAccountSQL redeems an activation key as one atomic check-and-clear:
// the WHERE clause verifies the key and the SET clears it, so two concurrent
// redemptions cannot both match.
var ActivateAccountSQL = `UPDATE "accounts" AS "acc"
SET
	"activated" = TRUE,
	"activation_key" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."activation_key" = ?
) RETURNING *;`

// RedeemResetKeySQL applies the rehash and clears the reset key/date in the
// same atomic statement. Expiry is checked by the caller before this runs;
// the key match here is what makes the token single-use.
var RedeemResetKeySQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"reset_key" = NULL,
	"reset_date" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."reset_key" = ?
) RETURNING *;`

var ChangePasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	FindByLogin(ctx context.Context, login string) (*Account, error)
	FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByActivationKey(ctx context.Context, key string) (*Account, error)
	FindByActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*Account, error)
	FindByResetKey(ctx context.Context, key string) (*Account, error)
	FindByResetKeyTx(ctx context.Context, tx bun.IDB, key string) (*Account, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	Activate(ctx context.Context, key string) (*Account, error)
	ActivateTx(ctx context.Context, tx bun.IDB, key string) (*Account, error)
	RedeemResetKey(ctx context.Context, key, passwordHash string) (*Account, error)
	RedeemResetKeyTx(ctx context.Context, tx bun.IDB, key, passwordHash string) (*Account, error)
	ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	StampResetKey(ctx context.Context, id uuid.UUID, key string, at time.Time) (*Account, error)
	StampResetKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, key string, at time.Time) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

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
		GetIdentifier: func() string {
			return "login"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) FindByLogin(ctx context.Context, login string) (*Account, error) {
	return a.FindByLoginTx(ctx, a.db, login)
}

func (a *accounts) FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*Account, error) {
	return a.findByColumnTx(ctx, tx, "login", NormalizeLogin(login))
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.findByColumnTx(ctx, tx, "email", email)
}

func (a *accounts) FindByActivationKey(ctx context.Context, key string) (*Account, error) {
	return a.FindByActivationKeyTx(ctx, a.db, key)
}

func (a *accounts) FindByActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*Account, error) {
	return a.findByColumnTx(ctx, tx, "activation_key", key)
}

func (a *accounts) FindByResetKey(ctx context.Context, key string) (*Account, error) {
	return a.FindByResetKeyTx(ctx, a.db, key)
}

func (a *accounts) FindByResetKeyTx(ctx context.Context, tx bun.IDB, key string) (*Account, error) {
	return a.findByColumnTx(ctx, tx, "reset_key", key)
}

func (a *accounts) findByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{column: value})
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) Activate(ctx context.Context, key string) (*Account, error) {
	return a.ActivateTx(ctx, a.db, key)
}

func (a *accounts) ActivateTx(ctx context.Context, tx bun.IDB, key string) (*Account, error) {
	if key == "" {
		return nil, ErrInvalidOrExpiredKey
	}

	res, err := a.Repository.RawTx(ctx, tx, ActivateAccountSQL, key)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrInvalidOrExpiredKey
	}

	return res[0], nil
}

func (a *accounts) RedeemResetKey(ctx context.Context, key, passwordHash string) (*Account, error) {
	return a.RedeemResetKeyTx(ctx, a.db, key, passwordHash)
}

func (a *accounts) RedeemResetKeyTx(ctx context.Context, tx bun.IDB, key, passwordHash string) (*Account, error) {
	if key == "" {
		return nil, ErrInvalidOrExpiredKey
	}

	res, err := a.Repository.RawTx(ctx, tx, RedeemResetKeySQL, passwordHash, key)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrInvalidOrExpiredKey
	}

	return res[0], nil
}

func (a *accounts) ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ChangePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ChangePasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accounts) StampResetKey(ctx context.Context, id uuid.UUID, key string, at time.Time) (*Account, error) {
	return a.StampResetKeyTx(ctx, a.db, id, key, at)
}

// StampResetKeyTx records a freshly issued reset key and its issuance time.
func (a *accounts) StampResetKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, key string, at time.Time) (*Account, error) {
	record := &Account{}
	record.ID = id
	record.ResetKey = key
	record.ResetDate = &at

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Login = NormalizeLogin(record.Login)

	if len(record.Authorities) == 0 {
		record.Authorities = DefaultAuthorities()
	}

	if record.RegisterDate == nil {
		now := time.Now()
		record.RegisterDate = &now
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
