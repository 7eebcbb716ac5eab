package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/snarg/call-dossier/internal/event"
)

// AuditResult is the once-per-call projection of CallAudited.
type AuditResult struct {
	ID                      string
	CallID                  string
	AgentID                 string
	OverallScore            int
	ComplianceStatus        string
	ScriptAdherence         int
	CustomerService         int
	ResolutionEffectiveness int
	FlagsForReview          bool
	ReviewReason            string
	ProcessingTimeMs        int64
}

func (s *Store) ExistsAudit(ctx context.Context, callID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM audit_results WHERE call_id = $1)`, callID,
	).Scan(&exists)
	return exists, err
}

// InsertAuditResult writes the audit row and its violations in one
// transaction, conditional on no existing row for callID. Returns the
// auditResultId the caller should include when producing CallAudited.
func (s *Store) InsertAuditResult(ctx context.Context, a AuditResult, violations []event.ComplianceViolation) (string, bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO audit_results (id, call_id, agent_id, overall_score, compliance_status,
			script_adherence, customer_service, resolution_effectiveness, flags_for_review,
			review_reason, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (call_id) DO NOTHING
		RETURNING id`,
		a.ID, a.CallID, a.AgentID, a.OverallScore, a.ComplianceStatus,
		a.ScriptAdherence, a.CustomerService, a.ResolutionEffectiveness, a.FlagsForReview,
		a.ReviewReason, a.ProcessingTimeMs,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already processed (conflict suppressed the insert): nothing to do.
		return "", false, tx.Commit(ctx)
	}
	if err != nil {
		return "", false, err
	}

	for _, v := range violations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO compliance_violations (audit_result_id, rule_id, rule_name, severity,
				description, timestamp_in_call, evidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, v.RuleID, v.RuleName, v.Severity, v.Description, v.TimestampInCall, v.Evidence,
		); err != nil {
			return "", false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// GetAuditResult returns the projected audit result for a call.
func (s *Store) GetAuditResult(ctx context.Context, callID string) (*AuditResult, error) {
	var a AuditResult
	a.CallID = callID
	err := s.Pool.QueryRow(ctx, `
		SELECT id, agent_id, overall_score, compliance_status, script_adherence,
			customer_service, resolution_effectiveness, flags_for_review, review_reason, processing_time_ms
		FROM audit_results WHERE call_id = $1`, callID,
	).Scan(&a.ID, &a.AgentID, &a.OverallScore, &a.ComplianceStatus, &a.ScriptAdherence,
		&a.CustomerService, &a.ResolutionEffectiveness, &a.FlagsForReview, &a.ReviewReason, &a.ProcessingTimeMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetViolations returns the violations recorded against an audit result.
func (s *Store) GetViolations(ctx context.Context, auditResultID string) ([]event.ComplianceViolation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT rule_id, rule_name, severity, description, timestamp_in_call, evidence
		FROM compliance_violations WHERE audit_result_id = $1`, auditResultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.ComplianceViolation
	for rows.Next() {
		var v event.ComplianceViolation
		if err := rows.Scan(&v.RuleID, &v.RuleName, &v.Severity, &v.Description, &v.TimestampInCall, &v.Evidence); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
