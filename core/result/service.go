package result

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/stats"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
)

var (
	// errors
	ErrResultExists = core.NewConflictError("a result already exists for this student, subject, class, session and term")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateResult returns a *core.ConflictError when the cohort already has a result for the student.
		CreateResult(ctx context.Context, res Result, exec ...core.DBExecutor) (Result, error)
		// GetResult returns core.ErrNotFound unless the result exists in the school.
		// forUpdate locks the row until the surrounding transaction ends.
		GetResult(ctx context.Context, schoolID, id string, forUpdate bool, exec ...core.DBExecutor) (Result, error)
		UpdateResult(ctx context.Context, res Result, exec ...core.DBExecutor) (Result, error)
		DeleteResult(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
		// QueryResults orders by total score descending, then student last name.
		QueryResults(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Result, error)
		QueryAssignments(ctx context.Context, schoolID, teacherID string, exec ...core.DBExecutor) ([]Assignment, error)
	}

	Service interface {
		Create(ctx context.Context, p tenant.Principal, nr NewResult) (Result, error)
		Get(ctx context.Context, p tenant.Principal, id string) (Result, error)
		Update(ctx context.Context, p tenant.Principal, id string, ur UpdateResult, meta ChangeMeta) (Result, error)
		// BulkUpdate applies every update or none of them.
		BulkUpdate(ctx context.Context, p tenant.Principal, bu BulkUpdate, meta ChangeMeta) ([]Result, error)
		// Delete returns the deleted Result.
		Delete(ctx context.Context, p tenant.Principal, id string) (Result, error)
		ListByTeacher(ctx context.Context, p tenant.Principal, teacherID string, filter QueryFilter) ([]Result, error)
		ListCohort(ctx context.Context, p tenant.Principal, key stats.CohortKey, filter QueryFilter) ([]Result, error)
		ListByStudent(ctx context.Context, p tenant.Principal, studentID string, filter QueryFilter) ([]Result, error)
		ListAssignments(ctx context.Context, p tenant.Principal, teacherID string) ([]Assignment, error)
		History(ctx context.Context, p tenant.Principal, id string) ([]audit.Entry, error)
	}

	Options struct {
		// AutoRecompute refreshes the affected cohorts after every committed write.
		AutoRecompute bool
		DefaultLimit  int
		MaxLimit      int
		MaxBulkSize   int
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		usrSvc   user.Service
		engine   stats.Engine
		trail    audit.Trail
		validate *validator.Validate
		logger   core.Logger
		metrics  core.Metrics
		opts     Options
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	tx core.Transactor,
	repo Repository,
	usrSvc user.Service,
	engine stats.Engine,
	trail audit.Trail,
	validate *validator.Validate,
	logger core.Logger,
	metrics core.Metrics,
	opts Options,
) Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &service{
		tx:       tx,
		repo:     repo,
		usrSvc:   usrSvc,
		engine:   engine,
		trail:    trail,
		validate: validate,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// OptionsFromConfig returns the service Options held by conf.
func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		AutoRecompute: conf.Results.AutoRecompute,
		DefaultLimit:  conf.Results.DefaultLimit,
		MaxLimit:      conf.Results.MaxLimit,
		MaxBulkSize:   conf.Results.MaxBulkSize,
	}
}

func resource(res Result) tenant.Resource {
	return tenant.Resource{SchoolID: res.SchoolID, TeacherID: res.TeacherID, StudentID: res.StudentID}
}

// checkMember returns a ValidationError on field when id is not a member of the school with one of roles.
func (svc *service) checkMember(ctx context.Context, schoolID, id, field string, roles ...tenant.Role) error {
	if _, err := svc.usrSvc.GetMember(ctx, schoolID, id, roles...); err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: field, Error: field + " does not match any " + string(roles[0]) + " of this school"})
		}
		return errors.Wrapf(err, "finding %s", field)
	}
	return nil
}

func (svc *service) Create(ctx context.Context, p tenant.Principal, nr NewResult) (Result, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Result{}, err
	}

	res := Result{
		SchoolID:         p.SchoolID,
		StudentID:        nr.StudentID,
		SubjectName:      nr.SubjectName,
		TeacherID:        nr.TeacherID,
		Class:            nr.Class,
		Session:          nr.Session,
		Term:             nr.Term,
		Assessment1:      nr.Assessment1,
		Assessment2:      nr.Assessment2,
		CATest:           nr.CATest,
		ExamScore:        nr.ExamScore,
		Remark:           nr.Remark,
		TeacherComment:   nr.TeacherComment,
		DaysPresent:      nr.DaysPresent,
		DaysSchoolOpened: nr.DaysSchoolOpened,
		LastUpdatedBy:    p.UserID,
	}
	if err := tenant.Authorize(p, tenant.ActionCreate, resource(res)).Err(); err != nil {
		return Result{}, err
	}
	if err := res.checkAttendance(); err != nil {
		return Result{}, err
	}
	res.derive()
	if res.Remark == "" {
		_, res.Remark = Grade(res.TotalScore)
	}

	if err := svc.checkMember(ctx, p.SchoolID, res.StudentID, "student_id", tenant.RoleStudent); err != nil {
		return Result{}, err
	}
	if err := svc.checkMember(ctx, p.SchoolID, res.TeacherID, "teacher_id", tenant.RoleTeacher, tenant.RoleAdmin); err != nil {
		return Result{}, err
	}

	now := NowFunc().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		created, err := svc.repo.CreateResult(ctx, res, exec)
		if err != nil {
			if core.IsConflict(err) {
				return ErrResultExists
			}
			return errors.Wrap(err, "inserting result")
		}
		res, err = svc.repo.GetResult(ctx, created.SchoolID, created.ID, false, exec)
		return errors.Wrap(err, "reading created result")
	})
	if err != nil {
		return Result{}, err
	}

	svc.metrics.ResultsWritten("create", 1)
	svc.recompute(ctx, p, res.Cohort())
	return res, nil
}

func (svc *service) Get(ctx context.Context, p tenant.Principal, id string) (Result, error) {
	res, err := svc.repo.GetResult(ctx, p.SchoolID, id, false)
	if err != nil {
		return Result{}, err
	}
	if err = tenant.Authorize(p, tenant.ActionRead, resource(res)).Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// change is a committed update, pending its history entry.
type change struct {
	before Result
	after  Result
	reason string
}

// update applies ur to the result id within exec.
func (svc *service) update(ctx context.Context, p tenant.Principal, id string, ur UpdateResult, exec core.DBExecutor) (change, error) {
	before, err := svc.repo.GetResult(ctx, p.SchoolID, id, true, exec)
	if err != nil {
		return change{}, err
	}
	if err = tenant.Authorize(p, tenant.ActionUpdate, resource(before)).Err(); err != nil {
		return change{}, err
	}

	after := before
	ur.apply(&after)
	if err = after.checkAttendance(); err != nil {
		return change{}, err
	}
	after.LastUpdatedBy = p.UserID
	after.UpdatedAt = NowFunc().UTC()

	if _, err = svc.repo.UpdateResult(ctx, after, exec); err != nil {
		return change{}, errors.Wrap(err, "updating result")
	}
	after, err = svc.repo.GetResult(ctx, p.SchoolID, id, false, exec)
	if err != nil {
		return change{}, errors.Wrap(err, "reading updated result")
	}
	return change{before: before, after: after, reason: ur.ChangeReason}, nil
}

// record writes the history of committed changes. It never fails.
func (svc *service) record(ctx context.Context, p tenant.Principal, meta ChangeMeta, changes ...change) {
	for _, c := range changes {
		svc.trail.Record(ctx, audit.Entry{
			SchoolID:        c.after.SchoolID,
			StudentResultID: c.after.ID,
			Previous:        c.before.Snapshot(),
			New:             c.after.Snapshot(),
			ChangedBy:       p.UserID,
			ChangeReason:    c.reason,
			IPAddress:       meta.IPAddress,
			UserAgent:       meta.UserAgent,
			CreatedAt:       c.after.UpdatedAt,
		})
	}
}

func (svc *service) Update(ctx context.Context, p tenant.Principal, id string, ur UpdateResult, meta ChangeMeta) (Result, error) {
	if err := ur.Validate(svc.validate); err != nil {
		return Result{}, err
	}

	var c change
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		c, err = svc.update(ctx, p, id, ur, exec)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	svc.metrics.ResultsWritten("update", 1)
	svc.record(ctx, p, meta, c)
	svc.recompute(ctx, p, c.after.Cohort())
	return c.after, nil
}

// lockBulk locks the rows of a batch in id order, the order cohort recomputes lock them in.
func (svc *service) lockBulk(ctx context.Context, p tenant.Principal, bu BulkUpdate, exec core.DBExecutor) error {
	index := make(map[string]int, len(bu.Updates))
	ids := make([]string, 0, len(bu.Updates))
	for i, item := range bu.Updates {
		if _, ok := index[item.ID]; !ok {
			index[item.ID] = i
			ids = append(ids, item.ID)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := svc.repo.GetResult(ctx, p.SchoolID, id, true, exec); err != nil {
			return errors.Wrapf(err, "updates[%d]", index[id])
		}
	}
	return nil
}

func (svc *service) BulkUpdate(ctx context.Context, p tenant.Principal, bu BulkUpdate, meta ChangeMeta) ([]Result, error) {
	if err := bu.Validate(svc.validate, svc.opts.MaxBulkSize); err != nil {
		return nil, err
	}

	changes := make([]change, 0, len(bu.Updates))
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.lockBulk(ctx, p, bu, exec); err != nil {
			return err
		}
		for i, item := range bu.Updates {
			c, err := svc.update(ctx, p, item.ID, item.UpdateResult, exec)
			if err != nil {
				return errors.Wrapf(err, "updates[%d]", i)
			}
			changes = append(changes, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.metrics.ResultsWritten("update", len(changes))
	svc.record(ctx, p, meta, changes...)

	results := make([]Result, 0, len(changes))
	cohorts := make([]stats.CohortKey, 0, len(changes))
	seen := make(map[stats.CohortKey]bool, len(changes))
	for _, c := range changes {
		results = append(results, c.after)
		if key := c.after.Cohort(); !seen[key] {
			seen[key] = true
			cohorts = append(cohorts, key)
		}
	}
	svc.recompute(ctx, p, cohorts...)
	return results, nil
}

func (svc *service) Delete(ctx context.Context, p tenant.Principal, id string) (Result, error) {
	var res Result
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		res, err = svc.repo.GetResult(ctx, p.SchoolID, id, true, exec)
		if err != nil {
			return err
		}
		if err = tenant.Authorize(p, tenant.ActionDelete, resource(res)).Err(); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteResult(ctx, p.SchoolID, id, exec), "deleting result")
	})
	if err != nil {
		return Result{}, err
	}

	svc.metrics.ResultsWritten("delete", 1)
	svc.recompute(ctx, p, res.Cohort())
	return res, nil
}

func (svc *service) list(ctx context.Context, filter QueryFilter) ([]Result, error) {
	filter.Clean(svc.opts.DefaultLimit, svc.opts.MaxLimit)
	results, err := svc.repo.QueryResults(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	return results, nil
}

func (svc *service) ListByTeacher(ctx context.Context, p tenant.Principal, teacherID string, filter QueryFilter) ([]Result, error) {
	if err := tenant.Authorize(p, tenant.ActionListByTeacher, tenant.Resource{SchoolID: p.SchoolID, TeacherID: teacherID}).Err(); err != nil {
		return nil, err
	}
	if _, err := svc.usrSvc.GetMember(ctx, p.SchoolID, teacherID, tenant.RoleTeacher, tenant.RoleAdmin); err != nil {
		return nil, err
	}
	filter.SchoolID = p.SchoolID
	filter.TeacherID = teacherID
	filter.StudentID = ""
	return svc.list(ctx, filter)
}

func (svc *service) ListCohort(ctx context.Context, p tenant.Principal, key stats.CohortKey, filter QueryFilter) ([]Result, error) {
	key.SchoolID = p.SchoolID
	if err := tenant.Authorize(p, tenant.ActionListCohort, tenant.Resource{SchoolID: key.SchoolID}).Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(svc.validate); err != nil {
		return nil, err
	}
	filter.SchoolID = key.SchoolID
	filter.TeacherID = ""
	filter.StudentID = ""
	filter.SubjectName = key.SubjectName
	filter.Class = key.Class
	filter.Session = key.Session
	filter.Term = key.Term
	return svc.list(ctx, filter)
}

func (svc *service) ListByStudent(ctx context.Context, p tenant.Principal, studentID string, filter QueryFilter) ([]Result, error) {
	if err := tenant.Authorize(p, tenant.ActionListByStudent, tenant.Resource{SchoolID: p.SchoolID, StudentID: studentID}).Err(); err != nil {
		return nil, err
	}
	if _, err := svc.usrSvc.GetMember(ctx, p.SchoolID, studentID, tenant.RoleStudent); err != nil {
		return nil, err
	}
	filter.SchoolID = p.SchoolID
	filter.TeacherID = ""
	filter.StudentID = studentID
	return svc.list(ctx, filter)
}

func (svc *service) ListAssignments(ctx context.Context, p tenant.Principal, teacherID string) ([]Assignment, error) {
	if err := tenant.Authorize(p, tenant.ActionListAssignments, tenant.Resource{SchoolID: p.SchoolID, TeacherID: teacherID}).Err(); err != nil {
		return nil, err
	}
	if _, err := svc.usrSvc.GetMember(ctx, p.SchoolID, teacherID, tenant.RoleTeacher, tenant.RoleAdmin); err != nil {
		return nil, err
	}
	assignments, err := svc.repo.QueryAssignments(ctx, p.SchoolID, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

// History returns the change history of a result. The history of a deleted result
// stays visible as long as it has entries.
func (svc *service) History(ctx context.Context, p tenant.Principal, id string) ([]audit.Entry, error) {
	res, err := svc.repo.GetResult(ctx, p.SchoolID, id, false)
	switch {
	case err == nil:
		if err = tenant.Authorize(p, tenant.ActionViewHistory, resource(res)).Err(); err != nil {
			return nil, err
		}
	case errors.Cause(err) != core.ErrNotFound:
		return nil, errors.Wrap(err, "finding result")
	}
	notFound := err != nil

	entries, err := svc.trail.History(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if notFound && len(entries) == 0 {
		return nil, core.ErrNotFound
	}
	return entries, nil
}

// recompute refreshes the statistics and positions of cohorts after a committed write.
// Failures are logged: the write itself already succeeded.
func (svc *service) recompute(ctx context.Context, p tenant.Principal, cohorts ...stats.CohortKey) {
	if !svc.opts.AutoRecompute || svc.engine == nil {
		return
	}
	// the writer may not be allowed to trigger a recompute itself
	system := tenant.Principal{SchoolID: p.SchoolID, UserID: p.UserID, Role: tenant.RoleAdmin}
	for _, key := range cohorts {
		if _, err := svc.engine.Recompute(ctx, system, key); err != nil {
			svc.logger.Error("recomputing cohort", errors.Wrapf(err, "recomputing %s", key), p)
		}
	}
}
