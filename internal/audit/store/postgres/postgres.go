// Package postgres persists the audit trail through database/sql and
// lib/pq. Appends are idempotent on the event ID so a replayed batch
// never duplicates entries.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"quoin/internal/audit"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
)

// Store writes sealed entries to the audit_entries table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const insertEntrySQL = `
	INSERT INTO audit_entries (
		event_id, sequence, prev_hash, entry_hash, occurred_at,
		tenant_id, user_id, user_email, action, resource, resource_id,
		method, path, status_code, duration_ms, error_code,
		correlation_id, client_ip, user_agent, compliance_flags,
		request_body, response_body
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	ON CONFLICT (event_id) DO NOTHING`

const selectEntrySQL = `
	SELECT event_id, sequence, prev_hash, entry_hash, occurred_at,
	       COALESCE(tenant_id::text, ''), COALESCE(user_id::text, ''), user_email,
	       action, resource, resource_id,
	       method, path, status_code, duration_ms, error_code,
	       correlation_id, client_ip, user_agent, compliance_flags,
	       request_body, response_body
	FROM audit_entries`

// Append inserts the batch in one transaction. Entries already present by
// event ID are skipped, making replays after a crash harmless.
func (s *Store) Append(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin audit append")
	}

	for _, e := range entries {
		flags := e.ComplianceFlags
		if flags == nil {
			flags = []string{}
		}
		_, err := tx.ExecContext(ctx, insertEntrySQL,
			uuid.UUID(e.EventID),
			int64(e.Sequence),
			e.PrevHash,
			e.EntryHash,
			e.OccurredAt,
			nullUUID(e.TenantID),
			nullUUID(e.UserID),
			e.UserEmail,
			e.Action,
			e.Resource,
			e.ResourceID,
			e.Method,
			e.Path,
			e.StatusCode,
			e.DurationMS,
			e.ErrorCode,
			e.CorrelationID,
			e.ClientIP,
			e.UserAgent,
			pq.Array(flags),
			nullJSON(e.RequestBody),
			nullJSON(e.ResponseBody),
		)
		if err != nil {
			_ = tx.Rollback()
			return classify(err, "insert audit entry")
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(err, "commit audit append")
	}
	return nil
}

// List returns matching entries newest-first.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	query := selectEntrySQL

	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}
	if f.ActorID != "" {
		add("user_id = $%d", f.ActorID)
	}
	if f.Resource != "" {
		add("resource = $%d", f.Resource)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, sequence DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "query audit entries")
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear deletes the recorded trail and reports how many rows went.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_entries`)
	if err != nil {
		return 0, classify(err, "clear audit entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear audit entries: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry

	for rows.Next() {
		var (
			e        audit.Entry
			eventID  uuid.UUID
			sequence int64
			flags    pq.StringArray
			reqBody  []byte
			resBody  []byte
		)
		err := rows.Scan(
			&eventID,
			&sequence,
			&e.PrevHash,
			&e.EntryHash,
			&e.OccurredAt,
			&e.TenantID,
			&e.UserID,
			&e.UserEmail,
			&e.Action,
			&e.Resource,
			&e.ResourceID,
			&e.Method,
			&e.Path,
			&e.StatusCode,
			&e.DurationMS,
			&e.ErrorCode,
			&e.CorrelationID,
			&e.ClientIP,
			&e.UserAgent,
			&flags,
			&reqBody,
			&resBody,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		e.EventID = id.EventID(eventID)
		e.Sequence = uint64(sequence)
		if len(flags) > 0 {
			e.ComplianceFlags = []string(flags)
		}
		if len(reqBody) > 0 {
			e.RequestBody = json.RawMessage(reqBody)
		}
		if len(resBody) > 0 {
			e.ResponseBody = json.RawMessage(resBody)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// nullUUID maps the entry's optional UUID strings onto nullable columns.
func nullUUID(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func classify(err error, op string) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Unavailability through lib/pq: connection-exception SQLSTATEs (class 08),
// shutdown states, connection-pool exhaustion, plus transport errors.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03", "53300":
			return true
		}
	}
	return false
}
