package models

import "time"

// MBridgeStatus mirrors the bootstrap endpoint body.
type MBridgeStatus struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"-"`
}
