package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/sovaehr/internal/model"
)

// ClientStorageStore holds each browser's durable storage area.
type ClientStorageStore struct {
	db *sql.DB
}

func NewClientStorageStore(db *sql.DB) *ClientStorageStore {
	return &ClientStorageStore{db: db}
}

const storageCols = `client_id, key, value, sealed, updated_at`

func scanStorageItem(scanner interface{ Scan(...any) error }) (*model.StorageItem, error) {
	var item model.StorageItem
	var sealed int
	var updatedAt int64

	if err := scanner.Scan(&item.ClientID, &item.Key, &item.Value, &sealed, &updatedAt); err != nil {
		return nil, err
	}

	item.Sealed = sealed != 0
	item.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &item, nil
}

// Get returns the item stored under key for the client, or nil when absent.
func (s *ClientStorageStore) Get(clientID, key string) (*model.StorageItem, error) {
	row := s.db.QueryRow(
		`SELECT `+storageCols+` FROM client_storage WHERE client_id = ? AND key = ?`,
		clientID, key,
	)
	item, err := scanStorageItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get storage item %q: %w", key, err)
	}
	return item, nil
}

func (s *ClientStorageStore) List(clientID string) ([]model.StorageItem, error) {
	rows, err := s.db.Query(
		`SELECT `+storageCols+` FROM client_storage WHERE client_id = ? ORDER BY key`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("list storage items: %w", err)
	}
	defer rows.Close()

	var items []model.StorageItem
	for rows.Next() {
		item, err := scanStorageItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan storage item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Put inserts or replaces an item.
func (s *ClientStorageStore) Put(clientID, key string, value []byte, sealed bool) error {
	_, err := s.db.Exec(
		`INSERT INTO client_storage (client_id, key, value, sealed, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(client_id, key) DO UPDATE SET value = excluded.value, sealed = excluded.sealed, updated_at = excluded.updated_at`,
		clientID, key, value, boolToInt(sealed), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put storage item %q: %w", key, err)
	}
	return nil
}

// Delete removes one key. Deleting a missing key is not an error.
func (s *ClientStorageStore) Delete(clientID, key string) error {
	if _, err := s.db.Exec(`DELETE FROM client_storage WHERE client_id = ? AND key = ?`, clientID, key); err != nil {
		return fmt.Errorf("delete storage item %q: %w", key, err)
	}
	return nil
}

// DeleteClient drops every key the client holds.
func (s *ClientStorageStore) DeleteClient(clientID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM client_storage WHERE client_id = ?`, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete client storage: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// DeleteStale removes items not written since before.
func (s *ClientStorageStore) DeleteStale(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM client_storage WHERE updated_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete stale storage items: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// EnsureMeta stores value under key unless a value already exists, and
// returns whichever value is persisted.
func (s *ClientStorageStore) EnsureMeta(key string, value []byte) ([]byte, error) {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO storage_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return nil, fmt.Errorf("insert meta %q: %w", key, err)
	}

	var stored []byte
	if err := s.db.QueryRow(`SELECT value FROM storage_meta WHERE key = ?`, key).Scan(&stored); err != nil {
		return nil, fmt.Errorf("get meta %q: %w", key, err)
	}
	return stored, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
