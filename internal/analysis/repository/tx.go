package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"portal_analysis_backend/internal/analysis/domain"
)

// Tx is the set of writes reconciliation performs inside one transaction.
type Tx interface {
	// LockJob loads the job row with FOR UPDATE; concurrent deliveries for
	// the same job serialize here.
	LockJob(ctx context.Context, tenantID, jobID uuid.UUID) (Job, error)
	// ResolveLead returns the lead behind a call or appointment, or nil.
	ResolveLead(ctx context.Context, tenantID uuid.UUID, subject domain.SubjectType, subjectID uuid.UUID) (*uuid.UUID, error)
	LockLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error)
	UpdateLeadStatus(ctx context.Context, tenantID, leadID uuid.UUID, status domain.LeadStatus, closedAt *time.Time) error
	AppendLeadStatusHistory(ctx context.Context, entry StatusHistoryEntry) error
	LockAppointment(ctx context.Context, tenantID, appointmentID uuid.UUID) (Appointment, error)
	UpdateAppointmentOutcome(ctx context.Context, tenantID, appointmentID uuid.UUID, outcome domain.AppointmentOutcome, status domain.AppointmentStatus, dealSize *float64) error
	// CreateTaskIfAbsent inserts the task. created is false when a row with
	// the same natural key already exists.
	CreateTaskIfAbsent(ctx context.Context, task NewTask) (id uuid.UUID, created bool, err error)
	CreateKeySignalIfAbsent(ctx context.Context, signal NewKeySignal) (id uuid.UUID, created bool, err error)
	SaveJobResult(ctx context.Context, tenantID, jobID uuid.UUID, result JobResult) error
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockJob(ctx context.Context, tenantID, jobID uuid.UUID) (Job, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("lock analysis job: %w", err)
	}
	return job, nil
}

func (t *pgTx) ResolveLead(ctx context.Context, tenantID uuid.UUID, subject domain.SubjectType, subjectID uuid.UUID) (*uuid.UUID, error) {
	query := `SELECT lead_id FROM calls WHERE tenant_id = $1 AND id = $2`
	if subject == domain.SubjectVisit {
		query = `SELECT lead_id FROM appointments WHERE tenant_id = $1 AND id = $2`
	}

	var leadID *uuid.UUID
	err := t.tx.QueryRow(ctx, query, tenantID, subjectID).Scan(&leadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve lead for %s: %w", subject, err)
	}
	return leadID, nil
}

func (t *pgTx) LockLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error) {
	var (
		lead   Lead
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, status, closed_at
		FROM leads
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE`, tenantID, leadID,
	).Scan(&lead.ID, &lead.TenantID, &status, &lead.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("lock lead: %w", err)
	}
	lead.Status = domain.LeadStatus(status)
	return lead, nil
}

func (t *pgTx) UpdateLeadStatus(ctx context.Context, tenantID, leadID uuid.UUID, status domain.LeadStatus, closedAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE leads
		SET status = $3, closed_at = COALESCE($4, closed_at), updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, leadID, string(status), closedAt,
	)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return nil
}

func (t *pgTx) AppendLeadStatusHistory(ctx context.Context, e StatusHistoryEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO lead_status_history (id, tenant_id, lead_id, from_status, to_status, source, analysis_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), e.TenantID, e.LeadID, string(e.From), string(e.To), e.Source, e.JobID,
	)
	if err != nil {
		return fmt.Errorf("append lead status history: %w", err)
	}
	return nil
}

func (t *pgTx) LockAppointment(ctx context.Context, tenantID, appointmentID uuid.UUID) (Appointment, error) {
	var (
		appt    Appointment
		outcome string
		status  string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, lead_id, outcome, status, deal_size::float8
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE`, tenantID, appointmentID,
	).Scan(&appt.ID, &appt.TenantID, &appt.LeadID, &outcome, &status, &appt.DealSize)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("lock appointment: %w", err)
	}
	appt.Outcome = domain.AppointmentOutcome(outcome)
	appt.Status = domain.AppointmentStatus(status)
	return appt, nil
}

func (t *pgTx) UpdateAppointmentOutcome(ctx context.Context, tenantID, appointmentID uuid.UUID, outcome domain.AppointmentOutcome, status domain.AppointmentStatus, dealSize *float64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET outcome = $3, status = $4, deal_size = COALESCE($5, deal_size), updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, appointmentID, string(outcome), string(status), dealSize,
	)
	if err != nil {
		return fmt.Errorf("update appointment outcome: %w", err)
	}
	return nil
}

func (t *pgTx) CreateTaskIfAbsent(ctx context.Context, task NewTask) (uuid.UUID, bool, error) {
	id := uuid.New()
	return t.insertIfAbsent(ctx, id, `
		INSERT INTO tasks (id, tenant_id, natural_key, subject_type, subject_id, lead_id, description,
			matched_type, is_known_pattern, assignee, due_at, analysis_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, task.TenantID, task.NaturalKey, string(task.SubjectType), task.SubjectID, task.LeadID, task.Description,
		task.MatchedType, task.Known, string(task.Assignee), task.DueAt, task.JobID,
	)
}

func (t *pgTx) CreateKeySignalIfAbsent(ctx context.Context, s NewKeySignal) (uuid.UUID, bool, error) {
	id := uuid.New()
	return t.insertIfAbsent(ctx, id, `
		INSERT INTO key_signals (id, tenant_id, natural_key, subject_type, subject_id, lead_id,
			signal_type, severity, raw_type, description, analysis_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, s.TenantID, s.NaturalKey, string(s.SubjectType), s.SubjectID, s.LeadID,
		s.SignalType, string(s.Severity), s.RawType, s.Description, s.JobID,
	)
}

// insertIfAbsent runs the insert under a savepoint so a unique violation
// leaves the surrounding transaction usable.
func (t *pgTx) insertIfAbsent(ctx context.Context, id uuid.UUID, sql string, args ...any) (uuid.UUID, bool, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("savepoint: %w", err)
	}
	if _, err := sp.Exec(ctx, sql, args...); err != nil {
		_ = sp.Rollback(ctx)
		if isUniqueViolation(err) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	if err := sp.Commit(ctx); err != nil {
		return uuid.Nil, false, fmt.Errorf("release savepoint: %w", err)
	}
	return id, true, nil
}

func (t *pgTx) SaveJobResult(ctx context.Context, tenantID, jobID uuid.UUID, res JobResult) error {
	var (
		code      *string
		message   *string
		retryable *bool
	)
	if f := res.Failure; f != nil {
		code, message, retryable = &f.Code, &f.Message, &f.Retryable
	}

	_, err := t.tx.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $3,
			processed_output_hash = COALESCE($4, processed_output_hash),
			result_payload = COALESCE($5, result_payload),
			normalized_result = COALESCE($6, normalized_result),
			failure_code = COALESCE($7, failure_code),
			failure_message = COALESCE($8, failure_message),
			failure_retryable = COALESCE($9, failure_retryable),
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, jobID, string(res.Status), res.Hash, nullJSON(res.Raw), nullJSON(res.Normalized), code, message, retryable,
	)
	if err != nil {
		return fmt.Errorf("save analysis job result: %w", err)
	}
	return nil
}

// nullJSON keeps an empty payload from being written as invalid JSONB.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var _ Tx = (*pgTx)(nil)
