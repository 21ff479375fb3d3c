package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeVerificationSQL flips the verified flag and clears the token in one
// statement so a token can only ever be consumed once, regardless of call
// interleaving.
var ConsumeVerificationSQL = `UPDATE "users" AS "usr"
SET
	"is_verified" = TRUE,
	"verification_token" = ''
WHERE
	"usr"."verification_token" = ?
AND "usr"."verification_token" <> ''
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	ConsumeVerificationToken(ctx context.Context, token string) (*User, error)
	SetSessionToken(ctx context.Context, id uuid.UUID, token string) error
	ClearSessionToken(ctx context.Context, id uuid.UUID) error
	SetAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository builds the Users repository on top of the generic bun
// repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts the record. The unique index on users.email is the
// actual race guarantee; a constraint violation surfaces as ErrEmailInUse.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) ConsumeVerificationToken(ctx context.Context, token string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, ConsumeVerificationSQL, token)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrVerificationNotFound
	}

	return res[0], nil
}

func (a *users) SetSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	// Last writer wins; concurrent logins leave exactly one persisted token.
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"session_token" = ?,
			"updated_at" = ?
		WHERE
			("usr".id = ?);
	`, token, time.Now(), id).Exec(ctx)

	return err
}

func (a *users) ClearSessionToken(ctx context.Context, id uuid.UUID) error {
	// Idempotent: clearing an already empty token is a no-op.
	return a.SetSessionToken(ctx, id, "")
}

func (a *users) SetAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	res, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"avatar_url" = ?,
			"updated_at" = ?
		WHERE
			("usr".id = ?)
		RETURNING *;
	`, avatarURL, time.Now(), id).Exec(ctx)

	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

func prepareUserDefaults(user *User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Subscription == "" {
		user.Subscription = SubscriptionStarter
	}
	if user.CreatedAt == nil {
		now := time.Now()
		user.CreatedAt = &now
		user.UpdatedAt = &now
	}
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure
// from the store. Covers the sqlite and postgres message shapes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
}

type mngr struct {
	db    *bun.DB
	users Users
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:    db,
		users: NewUsersRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}
