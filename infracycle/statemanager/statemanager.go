package statemanager

import (
	"context"
	"errors"
	"time"
)

// State is the receipt for one provisioned resource, recorded after a
// successful install so later runs can tell "already there" from "missing"
// and "wrong version".
type State struct {
	Resource    string    `json:"resource"`
	Version     string    `json:"version"`
	Checksum    string    `json:"checksum,omitempty"`
	Source      string    `json:"source,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
	ChangedBy   string    `json:"changed_by,omitempty"`
}

// ErrStateNotFound reports that no receipt exists for a resource.
var ErrStateNotFound = errors.New("state not found")

// StateManager persists and retrieves resource receipts.
type StateManager interface {
	SaveState(ctx context.Context, state State) error

	// GetState returns ErrStateNotFound when the resource has no receipt.
	GetState(ctx context.Context, resource string) (State, error)

	ListStates(ctx context.Context) ([]State, error)
}
