package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/budgetcompass/internal/database"
)

// ClientStateStore persists small key/value blobs per device, standing in for
// a browser's local storage.
type ClientStateStore struct {
	db *database.DB
}

func NewClientStateStore(db *database.DB) *ClientStateStore {
	return &ClientStateStore{db: db}
}

// Get returns the value and whether the key exists.
func (s *ClientStateStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE device_id = ? AND key = ?`,
		deviceID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get client state %q: %w", key, err)
	}
	return value, true, nil
}

func (s *ClientStateStore) Set(ctx context.Context, deviceID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (device_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (device_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		deviceID, key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("set client state %q: %w", key, err)
	}
	return nil
}

func (s *ClientStateStore) Delete(ctx context.Context, deviceID, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE device_id = ? AND key = ?`, deviceID, key)
	if err != nil {
		return fmt.Errorf("delete client state %q: %w", key, err)
	}
	return nil
}

// ForDevice binds the store to one device.
func (s *ClientStateStore) ForDevice(deviceID string) *DeviceState {
	return &DeviceState{store: s, deviceID: deviceID}
}

// DeviceState is a ClientStateStore bound to a single device ID.
type DeviceState struct {
	store    *ClientStateStore
	deviceID string
}

func (d *DeviceState) Get(ctx context.Context, key string) (string, bool, error) {
	return d.store.Get(ctx, d.deviceID, key)
}

func (d *DeviceState) Set(ctx context.Context, key, value string) error {
	return d.store.Set(ctx, d.deviceID, key, value)
}

func (d *DeviceState) Delete(ctx context.Context, key string) error {
	return d.store.Delete(ctx, d.deviceID, key)
}
