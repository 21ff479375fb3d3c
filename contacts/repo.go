package contacts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Contacts interface {
	repository.Repository[*Contact]

	ListContacts(ctx context.Context) ([]*Contact, error)
	GetContact(ctx context.Context, id uuid.UUID) (*Contact, error)
	CreateContact(ctx context.Context, record *Contact) (*Contact, error)
	UpdateContact(ctx context.Context, id uuid.UUID, record *Contact) (*Contact, error)
	RemoveContact(ctx context.Context, id uuid.UUID) error
}

type contactsRepo struct {
	repository.Repository[*Contact]
	db *bun.DB
}

var (
	_ Contacts                        = (*contactsRepo)(nil)
	_ repository.Repository[*Contact] = (*contactsRepo)(nil)
)

// NewContactsRepository builds the Contacts repository on top of the
// generic bun repository.
func NewContactsRepository(db *bun.DB) Contacts {
	repo := repository.NewRepository[*Contact](db, repository.ModelHandlers[*Contact]{
		NewRecord: func() *Contact { return &Contact{} },
		GetID: func(c *Contact) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Contact, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &contactsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *contactsRepo) ListContacts(ctx context.Context) ([]*Contact, error) {
	records := []*Contact{}
	err := a.db.NewSelect().Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *contactsRepo) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	record := &Contact{}
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

func (a *contactsRepo) CreateContact(ctx context.Context, record *Contact) (*Contact, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
		record.UpdatedAt = &now
	}
	return a.Repository.CreateTx(ctx, a.db, record)
}

// UpdateContact replaces the mutable fields of an existing record. All
// fields are required on update, so this is a full replace.
func (a *contactsRepo) UpdateContact(ctx context.Context, id uuid.UUID, record *Contact) (*Contact, error) {
	existing, err := a.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	existing.Name = record.Name
	existing.Email = record.Email
	existing.Phone = record.Phone
	existing.UpdatedAt = &now

	return a.Repository.UpdateTx(ctx, a.db, existing, repository.UpdateByID(id.String()))
}

func (a *contactsRepo) RemoveContact(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().Model((*Contact)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}
