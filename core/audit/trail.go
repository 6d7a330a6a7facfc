package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/tenant"
)

type (
	Repository interface {
		InsertEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns the entries of a result, newest first, with ChangedByName set.
		QueryEntries(ctx context.Context, schoolID, resultID string, exec ...core.DBExecutor) ([]Entry, error)
	}

	Trail interface {
		// Record appends e to the ledger. Failures are logged, never returned.
		Record(ctx context.Context, e Entry)
		History(ctx context.Context, p tenant.Principal, resultID string) ([]Entry, error)
	}

	trail struct {
		repo    Repository
		logger  core.Logger
		metrics core.Metrics
	}
)

var _ Trail = (*trail)(nil) // interface compliance check

var NowFunc = time.Now // mockable

func NewTrail(repo Repository, logger core.Logger, metrics core.Metrics) Trail {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &trail{repo: repo, logger: logger, metrics: metrics}
}

func (t *trail) Record(ctx context.Context, e Entry) {
	e.ID = uuid.New().String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = NowFunc().UTC()
	}
	if _, err := t.repo.InsertEntry(ctx, e); err != nil {
		t.metrics.AuditRecordFailed()
		t.logger.Error("recording result history", errors.Wrap(err, "inserting history entry"), map[string]interface{}{
			"school_id":         e.SchoolID,
			"student_result_id": e.StudentResultID,
			"changed_by":        e.ChangedBy,
		})
	}
}

func (t *trail) History(ctx context.Context, p tenant.Principal, resultID string) ([]Entry, error) {
	if err := tenant.Authorize(p, tenant.ActionViewHistory, tenant.Resource{SchoolID: p.SchoolID}).Err(); err != nil {
		return nil, err
	}
	entries, err := t.repo.QueryEntries(ctx, p.SchoolID, resultID)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	return entries, nil
}
