// Package store defines the persistence interface the dispatcher depends
// on, plus the two concrete implementations that satisfy it: an
// in-memory map (default, used by tests) and a GORM/SQLite-backed store
// for durable client activation history.
//
// The core never imports a concrete backend directly — spec.md's
// persistence-coupling design note requires the dispatcher to depend
// only on this interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shalu066900/pykms/internal/wire"
)

// ErrNotFound is returned by Get when no ClientRecord exists for the
// given clientMachineId.
var ErrNotFound = errors.New("store: client record not found")

// ClientRecord is the persisted per-client activation history entry.
type ClientRecord struct {
	ClientMachineID wire.GUID
	ApplicationID   wire.GUID
	SkuID           wire.GUID
	LicenseStatus   uint32
	LastActivation  time.Time
	NCount          uint32
	MachineName     string
}

// ClientStore is the opaque persistence collaborator the dispatcher
// calls into. All three operations are synchronous from the
// dispatcher's viewpoint; an implementation may batch internally.
//
// Upsert must be idempotent under replay and last-writer-wins ordered
// by requestTime: a call whose record carries an older LastActivation
// than what is already stored must be a no-op (spec §5 persistence
// ordering guarantee).
type ClientStore interface {
	Get(ctx context.Context, clientMachineID wire.GUID) (*ClientRecord, error)
	Upsert(ctx context.Context, rec ClientRecord) error
	List(ctx context.Context) ([]ClientRecord, error)
}
