// Package persistence opens the bun database and creates the schema. The
// uniqueness constraints live in the model tags, so the tables carry them
// regardless of which path created the schema.
package persistence

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-contacts/auth"
	"github.com/goliatone/go-contacts/contacts"
)

// Models returns every registered model, leaf tables first.
func Models() []any {
	return []any{
		(*auth.User)(nil),
		(*contacts.Contact)(nil),
	}
}

// Open connects to the sqlite store behind the shim driver.
func Open(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Init creates missing tables for all registered models.
func Init(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
