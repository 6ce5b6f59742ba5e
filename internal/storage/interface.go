// Package storage provides the durable key-value state stores the session
// and conversation stores persist themselves through.
//
// Each record is stored as an envelope {"state": {...}, "version": 0} under a
// fixed key. The envelope shape is an external contract shared with the web
// client's local storage; implementations must preserve it byte-compatibly.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no record exists for the key.
var ErrNotFound = errors.New("state record not found")

// envelopeVersion is the current persisted-envelope version.
const envelopeVersion = 0

// Envelope wraps a persisted state record.
type Envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// StateStore persists named state records durably.
type StateStore interface {
	// Load returns the state field of the record stored under key,
	// or ErrNotFound.
	Load(ctx context.Context, key string) (json.RawMessage, error)

	// Save marshals state and stores it under key, wrapped in the envelope.
	Save(ctx context.Context, key string, state any) error

	// Delete purges the record under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}

// encodeEnvelope wraps state in the persisted envelope.
func encodeEnvelope(state any) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	data, err := json.Marshal(Envelope{State: raw, Version: envelopeVersion})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// decodeEnvelope extracts the state field from a persisted envelope.
func decodeEnvelope(data []byte) (json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if len(env.State) == 0 {
		return nil, errors.New("envelope has no state field")
	}
	return env.State, nil
}
