package storage

import (
	"context"
	"time"
)

// Repository is the durable side of a run. Every write is append-only.
type Repository interface {
	EnsureSchema(ctx context.Context) error

	LoadTransactions(ctx context.Context) ([]TxRecord, error)
	LoadKnownAddresses(ctx context.Context) ([]KnownAddress, error)

	// AppendKnownAddress adds addr unless the store already has it and reports whether it was added.
	AppendKnownAddress(ctx context.Context, addr KnownAddress) (bool, error)

	// AppendTransactions writes rows to the master log and to the partition of day.
	AppendTransactions(ctx context.Context, day time.Time, rows []TxRecord) error
	AppendPending(ctx context.Context, rows []PendingRecord) error
}
