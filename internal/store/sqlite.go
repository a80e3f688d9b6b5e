package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shalu066900/pykms/internal/wire"
)

// clientRecordRow is the GORM model backing ClientRecord. GUIDs are
// stored in their canonical string form and LastActivation as Unix
// nanoseconds, so the schema stays a plain SQLite table, matching spec.md's
// design note that the schema is an implementation detail of this
// collaborator, not something the dispatcher should know about.
type clientRecordRow struct {
	ClientMachineID string `gorm:"primaryKey"`
	ApplicationID   string
	SkuID           string
	LicenseStatus   uint32
	LastActivation  int64 // unix nano, for monotonic last-writer-wins comparison
	NCount          uint32
	MachineName     string
}

func (clientRecordRow) TableName() string { return "client_records" }

// SQLiteStore is the durable ClientStore implementation, backed by
// SQLite via GORM and the pure-Go glebarez/sqlite driver (no CGO).
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite database at
// path and ensures the schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create database directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&clientRecordRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func toRow(rec ClientRecord) clientRecordRow {
	return clientRecordRow{
		ClientMachineID: rec.ClientMachineID.String(),
		ApplicationID:   rec.ApplicationID.String(),
		SkuID:           rec.SkuID.String(),
		LicenseStatus:   rec.LicenseStatus,
		LastActivation:  rec.LastActivation.UnixNano(),
		NCount:          rec.NCount,
		MachineName:     rec.MachineName,
	}
}

func fromRow(row clientRecordRow) (ClientRecord, error) {
	clientID, err := parseGUID(row.ClientMachineID)
	if err != nil {
		return ClientRecord{}, err
	}
	appID, err := parseGUID(row.ApplicationID)
	if err != nil {
		return ClientRecord{}, err
	}
	skuID, err := parseGUID(row.SkuID)
	if err != nil {
		return ClientRecord{}, err
	}
	return ClientRecord{
		ClientMachineID: clientID,
		ApplicationID:   appID,
		SkuID:           skuID,
		LicenseStatus:   row.LicenseStatus,
		LastActivation:  unixNanoToTime(row.LastActivation),
		NCount:          row.NCount,
		MachineName:     row.MachineName,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, clientMachineID wire.GUID) (*ClientRecord, error) {
	var row clientRecordRow
	err := s.db.WithContext(ctx).Where("client_machine_id = ?", clientMachineID.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get client record: %w", err)
	}
	rec, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec ClientRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing clientRecordRow
		err := tx.Where("client_machine_id = ?", rec.ClientMachineID.String()).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(toRow(rec)).Error
		case err != nil:
			return err
		case rec.LastActivation.UnixNano() < existing.LastActivation:
			return nil // stale write, last-writer-wins on requestTime
		default:
			return tx.Model(&clientRecordRow{}).
				Where("client_machine_id = ?", rec.ClientMachineID.String()).
				Updates(toRow(rec)).Error
		}
	})
}

func (s *SQLiteStore) List(ctx context.Context) ([]ClientRecord, error) {
	var rows []clientRecordRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list client records: %w", err)
	}
	out := make([]ClientRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
