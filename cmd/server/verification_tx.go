package main

import (
	"context"
	"database/sql"
	"time"

	"citizenportal/internal/verification/service"
	"citizenportal/internal/verification/store"
	txutil "citizenportal/pkg/platform/tx"
)

// verificationPostgresTx runs verification writes in one Postgres
// transaction. Stores built on the tx lock the rows they read.
type verificationPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newVerificationPostgresTx(db *sql.DB, timeout time.Duration) *verificationPostgresTx {
	return &verificationPostgresTx{db: db, timeout: timeout}
}

func (t *verificationPostgresTx) RunInTx(ctx context.Context, fn func(stores service.Stores) error) error {
	return txutil.Run(ctx, t.db, t.timeout, func(tx *sql.Tx) error {
		return fn(service.Stores{
			Users:        store.NewPostgresUsersTx(tx),
			Applications: store.NewPostgresApplicationsTx(tx),
		})
	})
}

// verificationMemoryTx holds the in-memory store lock for the duration of fn
// and discards every write if fn fails.
type verificationMemoryTx struct {
	store *store.InMemory
}

func (t verificationMemoryTx) RunInTx(ctx context.Context, fn func(stores service.Stores) error) error {
	return t.store.WithinTx(ctx, func(users *store.MemoryUsers, apps *store.MemoryApplications) error {
		return fn(service.Stores{Users: users, Applications: apps})
	})
}
