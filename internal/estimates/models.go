package estimates

import (
	"time"

	id "quoin/pkg/domain"
)

// EstimateStatus is the lifecycle state of an estimate.
type EstimateStatus string

const (
	EstimateStatusDraft   EstimateStatus = "draft"
	EstimateStatusOpen    EstimateStatus = "open"
	EstimateStatusAwarded EstimateStatus = "awarded"
	EstimateStatusClosed  EstimateStatus = "closed"
)

// Estimate is a construction cost estimate a tenant opens for bidding.
type Estimate struct {
	ID          id.EstimateID  `json:"id"`
	TenantID    id.TenantID    `json:"tenant_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	AmountCents int64          `json:"amount_cents"`
	Status      EstimateStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BidStatus is the lifecycle state of a bid.
type BidStatus string

const (
	BidStatusSubmitted   BidStatus = "submitted"
	BidStatusShortlisted BidStatus = "shortlisted"
	BidStatusAccepted    BidStatus = "accepted"
	BidStatusRejected    BidStatus = "rejected"
)

// Bid is a contractor's offer against an estimate.
type Bid struct {
	ID             id.BidID      `json:"id"`
	TenantID       id.TenantID   `json:"tenant_id"`
	EstimateID     id.EstimateID `json:"estimate_id"`
	ContractorName string        `json:"contractor_name"`
	AmountCents    int64         `json:"amount_cents"`
	Status         BidStatus     `json:"status"`
	SubmittedAt    time.Time     `json:"submitted_at"`
}
