package model

import "time"

// StorageItem is one key/value pair in a browser's durable storage area.
type StorageItem struct {
	ClientID  string    `json:"client_id"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Sealed    bool      `json:"sealed"`
	UpdatedAt time.Time `json:"updated_at"`
}
