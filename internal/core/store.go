package core

import (
	"context"

	"github.com/JonMunkholm/CrewImport/internal/schema"
)

// CertificateKey identifies a certificate; the pair is unique in the store.
type CertificateKey struct {
	Number string
	CrewID int64
}

// Lookup answers set-membership questions against persisted rows. Each method
// is one round trip regardless of how many keys are passed, and returns only
// the keys that exist.
type Lookup interface {
	ExistingIDNumbers(ctx context.Context, idNumbers []string) (map[string]bool, error)
	ExistingPhones(ctx context.Context, phones []string) (map[string]bool, error)
	ExistingCrewIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	ExistingCertificates(ctx context.Context, keys []CertificateKey) (map[CertificateKey]bool, error)
}

// Tx is a store transaction. Begin on a Tx opens a nested transaction
// (a savepoint) whose rollback leaves the outer transaction usable.
type Tx interface {
	Begin(ctx context.Context) (Tx, error)
	Insert(ctx context.Context, entity schema.EntityType, row schema.Row) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is one pooled connection. Release must be called exactly once.
type Conn interface {
	Lookup
	Begin(ctx context.Context) (Tx, error)
	Release()
}

// Store hands out pooled connections.
type Store interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
}
