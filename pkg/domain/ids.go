// Package domain holds typed identifiers shared across packages.
//
// IDs are distinct types over uuid.UUID so the compiler rejects
// cross-type assignment: a UserID can never be passed where a TenantID
// is expected. Parse functions enforce the invariant that IDs are
// valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	"quoin/pkg/apierrors"
)

type (
	// TenantID identifies a tenant. Every tenant-scoped row and claim
	// carries one.
	TenantID uuid.UUID

	// UserID identifies an authenticated actor.
	UserID uuid.UUID

	// EventID identifies an audit trail entry.
	EventID uuid.UUID

	// EstimateID identifies an estimate resource.
	EstimateID uuid.UUID

	// BidID identifies a bid resource.
	BidID uuid.UUID
)

func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }
func (id EstimateID) String() string { return uuid.UUID(id).String() }
func (id BidID) String() string      { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EstimateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BidID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's marshaling, so each ID wires
// it back in explicitly. IDs travel as canonical UUID strings in JSON.

func (id TenantID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id EstimateID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BidID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EstimateID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BidID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewEventID mints a random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, apierrors.New(apierrors.CodeValidation, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apierrors.Wrap(err, apierrors.CodeValidation, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, apierrors.New(apierrors.CodeValidation, "id must not be the nil UUID")
	}
	return u, nil
}

// ParseTenantID validates and converts a string into a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseID(s)
	if err != nil {
		return TenantID(uuid.Nil), err
	}
	return TenantID(u), nil
}

// ParseUserID validates and converts a string into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseID(s)
	if err != nil {
		return UserID(uuid.Nil), err
	}
	return UserID(u), nil
}

// ParseEventID validates and converts a string into an EventID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseID(s)
	if err != nil {
		return EventID(uuid.Nil), err
	}
	return EventID(u), nil
}

// ParseEstimateID validates and converts a string into an EstimateID.
func ParseEstimateID(s string) (EstimateID, error) {
	u, err := parseID(s)
	if err != nil {
		return EstimateID(uuid.Nil), err
	}
	return EstimateID(u), nil
}

// ParseBidID validates and converts a string into a BidID.
func ParseBidID(s string) (BidID, error) {
	u, err := parseID(s)
	if err != nil {
		return BidID(uuid.Nil), err
	}
	return BidID(u), nil
}
