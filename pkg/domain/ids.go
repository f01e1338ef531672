// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "companion/pkg/domain-errors"
)

// UserID identifies the account whose credits are metered.
type UserID uuid.UUID

// PurchaseID is the billing collaborator's identifier for a confirmed top-up
// purchase (e.g., "pi_xxxx"). It keys purchase idempotency.
type PurchaseID string

// Parse functions - use at trust boundaries (handlers, webhook payloads).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParsePurchaseID(s string) (PurchaseID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purchase ID cannot be empty")
	}
	if len(s) > 255 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purchase ID too long")
	}
	return PurchaseID(s), nil
}

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id PurchaseID) String() string { return string(id) }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PurchaseID) IsNil() bool { return id == "" }

// parseUUID is the shared validation logic.
// Nil UUIDs parse successfully; services reject them with IsNil().
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
