// Package audit produces one tamper-evident record per completed request.
//
// The capture middleware builds an Entry from the final response state,
// the recorder buffers entries in a bounded drop-oldest ring, and a single
// worker seals them with a sequence number and a blake2b hash chain before
// handing batches to the configured sinks. Recording never fails a request:
// a full buffer drops the oldest entry and a sink failure is logged and
// counted, nothing more.
package audit

import (
	"encoding/json"
	"time"

	id "quoin/pkg/domain"
)

// Actions recorded on audit entries. Successful requests map from the HTTP
// method; failed requests keep the method with a _FAILED suffix so denied
// access stays distinguishable from granted access. Authentication paths
// record LOGIN regardless of method.
const (
	ActionLogin  = "LOGIN"
	ActionCreate = "CREATE"
	ActionRead   = "READ"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"

	// FailedSuffix marks actions derived from responses with status >= 400.
	FailedSuffix = "_FAILED"
)

// Compliance flags attached to entries by the Tagger. Which rules run is
// selected by the deployment profile.
const (
	FlagPersonalDataAccess       = "PERSONAL_DATA_ACCESS"
	FlagPersonalDataModification = "PERSONAL_DATA_MODIFICATION"
	FlagFinancialData            = "FINANCIAL_DATA"
	FlagDataExport               = "DATA_EXPORT"
	FlagAdminAccess              = "ADMIN_ACCESS"
	FlagAccessDenied             = "ACCESS_DENIED"
	FlagSensitiveResource        = "SENSITIVE_RESOURCE"
	FlagAuthentication           = "AUTHENTICATION"
	FlagAutomatedClient          = "AUTOMATED_CLIENT"
)

// Entry is one audit record. The recorder's worker assigns Sequence,
// PrevHash and EntryHash when it seals the entry; everything else is
// captured by the middleware at response completion.
//
// TenantID and UserID are UUID strings, empty when the request never
// reached the stage that would have resolved them (an expired token is
// still audited, just without an actor).
type Entry struct {
	EventID   id.EventID `json:"event_id"`
	Sequence  uint64     `json:"sequence"`
	PrevHash  string     `json:"prev_hash,omitempty"`
	EntryHash string     `json:"entry_hash,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`

	TenantID  string `json:"tenant_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`

	Action     string `json:"action"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resource_id,omitempty"`

	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`
	ErrorCode  string `json:"error_code,omitempty"`

	CorrelationID string `json:"correlation_id"`
	ClientIP      string `json:"client_ip,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`

	ComplianceFlags []string `json:"compliance_flags,omitempty"`

	RequestBody  json.RawMessage `json:"request_body,omitempty"`
	ResponseBody json.RawMessage `json:"response_body,omitempty"`
}

// Filter narrows admin queries over recorded entries. Zero fields match
// everything; Limit caps the result newest-first.
type Filter struct {
	ActorID  string
	TenantID string
	Resource string
	Action   string
	Limit    int
}

// Matches reports whether the entry satisfies every set filter field.
func (f Filter) Matches(e Entry) bool {
	if f.ActorID != "" && e.UserID != f.ActorID {
		return false
	}
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}
