package migrations

import (
	"context"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"ticket-sales/internal/store"
)

func init() {
	m.Register(func(app core.App) error {
		return store.Migrate(context.Background(), app.DB(), store.DialectSQLite)
	}, func(app core.App) error {
		return store.DropSchema(context.Background(), app.DB())
	})
}
