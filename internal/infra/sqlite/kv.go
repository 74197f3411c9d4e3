package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ─── Pulse Key-Value ────────────────────────────────────────────────────────

const upsertKV = `INSERT INTO pulse_kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`

// Get retrieves a value by key. Returns nil, nil if the key is not found.
func (d *DB) Get(key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRow(`SELECT value FROM pulse_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set stores a key-value pair, overwriting any previous value.
func (d *DB) Set(key string, value []byte) error {
	_, err := d.db.Exec(upsertKV, key, value, time.Now().UnixMilli())
	return err
}

// SetBatch writes every pair in one transaction: all or nothing.
func (d *DB) SetBatch(pairs map[string][]byte) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	now := time.Now().UnixMilli()
	for k, v := range pairs {
		if _, err := tx.Exec(upsertKV, k, v, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Delete removes a key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	_, err := d.db.Exec(`DELETE FROM pulse_kv WHERE key = ?`, key)
	return err
}

// UpdatedAt returns when key was last written (zero time if absent).
func (d *DB) UpdatedAt(key string) (time.Time, error) {
	var ms int64
	err := d.db.QueryRow(`SELECT updated_at FROM pulse_kv WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
