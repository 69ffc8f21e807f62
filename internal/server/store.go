package server

import (
	"context"
	"database/sql"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/store"
)

// pgStore binds the Postgres repositories to the services.
type pgStore struct {
	conn *sql.DB
}

// NewStore returns a services.Store backed by conn.
func NewStore(conn *sql.DB) services.Store {
	return &pgStore{conn: conn}
}

func (s *pgStore) Repositories() services.Repositories {
	return repositories(s.conn)
}

func (s *pgStore) InTx(ctx context.Context, fn func(ctx context.Context, repos services.Repositories) error) error {
	return db.WithTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, repositories(tx))
	})
}

func repositories(conn db.DBTX) services.Repositories {
	return services.Repositories{
		Users:         store.NewUserRepository(conn),
		Profiles:      store.NewProfileRepository(conn),
		Categories:    store.NewCategoryRepository(conn),
		Tasks:         store.NewTaskRepository(conn),
		OTPs:          store.NewOTPRepository(conn),
		Registrations: store.NewRegistrationRepository(conn),
	}
}
