package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/stats"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/storage/database"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
	boiledrepos "github.com/trezcool/gradebook/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/gradebook/storage/database/sqlx"
)

// Logger records what is logged so that tests can assert on it.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("%s: %s %v", level, msg, args))
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Messages)
}

// Metrics counts the recorded events.
type Metrics struct {
	mu            sync.Mutex
	Written       map[string]int
	Recomputes    int
	RecomputeErrs int
	AuditFailures int
}

var _ core.Metrics = (*Metrics)(nil)

func (m *Metrics) ResultsWritten(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Written == nil {
		m.Written = make(map[string]int)
	}
	m.Written[op] += n
}

func (m *Metrics) CohortRecomputed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recomputes++
	if err != nil {
		m.RecomputeErrs++
	}
}

func (m *Metrics) AuditRecordFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AuditFailures++
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// Backend wires every service over a fresh in-memory database.
type Backend struct {
	Conf        *core.Config
	Tx          core.Transactor
	Validate    *validator.Validate
	Logger      *Logger
	Metrics     *Metrics
	UserRepo    user.Repository
	ResultRepo  result.Repository
	StatsRepo   stats.Repository
	HistoryRepo audit.Repository
	UserSvc     user.Service
	Engine      stats.Engine
	Trail       audit.Trail
	ResultSvc   result.Service
}

type BackendOption func(*Backend)

// WithHistoryRepository swaps the history repository, e.g. for one that fails.
func WithHistoryRepository(repo audit.Repository) BackendOption {
	return func(b *Backend) { b.HistoryRepo = repo }
}

// WrapResultRepository decorates the result repository, e.g. to observe its calls.
func WrapResultRepository(wrap func(result.Repository) result.Repository) BackendOption {
	return func(b *Backend) { b.ResultRepo = wrap(b.ResultRepo) }
}

func WithAutoRecompute(enabled bool) BackendOption {
	return func(b *Backend) { b.Conf.Results.AutoRecompute = enabled }
}

func NewBackend(t *testing.T, opts ...BackendOption) *Backend {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}

	b := &Backend{
		Conf:        core.NewTestConfig(),
		Tx:          db,
		Validate:    NewValidator(),
		Logger:      new(Logger),
		Metrics:     new(Metrics),
		UserRepo:    inmemdb.NewUserRepository(db),
		ResultRepo:  inmemdb.NewResultRepository(db),
		StatsRepo:   inmemdb.NewStatisticsRepository(db),
		HistoryRepo: inmemdb.NewHistoryRepository(db),
	}
	return b.wire(opts)
}

// NewPostgresBackend wires every service over the test database. See PrepareDB.
func NewPostgresBackend(t *testing.T, opts ...BackendOption) *Backend {
	db := PrepareDB(t)
	b := &Backend{
		Conf:        core.NewTestConfig(),
		Tx:          database.NewTransactor(db),
		Validate:    NewValidator(),
		Logger:      new(Logger),
		Metrics:     new(Metrics),
		UserRepo:    sqlxrepos.NewUserRepository(db),
		ResultRepo:  sqlxrepos.NewResultRepository(db),
		StatsRepo:   boiledrepos.NewStatisticsRepository(db),
		HistoryRepo: boiledrepos.NewHistoryRepository(db),
	}
	return b.wire(opts)
}

func (b *Backend) wire(opts []BackendOption) *Backend {
	for _, opt := range opts {
		opt(b)
	}

	b.UserSvc = user.NewService(b.UserRepo, b.Validate)
	b.Engine = stats.NewEngine(b.Tx, b.StatsRepo, b.Validate, b.Metrics)
	b.Trail = audit.NewTrail(b.HistoryRepo, b.Logger, b.Metrics)
	b.ResultSvc = result.NewService(
		b.Tx, b.ResultRepo, b.UserSvc, b.Engine, b.Trail, b.Validate, b.Logger, b.Metrics,
		result.OptionsFromConfig(b.Conf),
	)
	return b
}

func CreateSchool(t *testing.T, repo user.Repository, name, code string) user.School {
	school, err := repo.CreateSchool(context.Background(), user.School{
		Name:      name,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return school
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	schoolID, firstName, lastName, email, pwd string,
	role tenant.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		SchoolID:  schoolID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateResult creates a result through svc, acting as p.
func CreateResult(t *testing.T, svc result.Service, p tenant.Principal, nr result.NewResult) result.Result {
	res, err := svc.Create(context.Background(), p, nr)
	if err != nil {
		t.Fatalf("CreateResult() failed: %v", err)
	}
	return res
}

// Scores returns a NewResult for the Mathematics/JSS1/2024/2025/First Term cohort.
func Scores(studentID, teacherID string, a1, a2, ca, exam float64) result.NewResult {
	return result.NewResult{
		StudentID:        studentID,
		SubjectName:      "Mathematics",
		TeacherID:        teacherID,
		Class:            "JSS1",
		Session:          "2024/2025",
		Term:             "First Term",
		Assessment1:      a1,
		Assessment2:      a2,
		CATest:           ca,
		ExamScore:        exam,
		DaysPresent:      60,
		DaysSchoolOpened: 65,
	}
}

// Cohort is the key of the cohort used by Scores.
func Cohort(schoolID string) stats.CohortKey {
	return stats.CohortKey{
		SchoolID:    schoolID,
		SubjectName: "Mathematics",
		Class:       "JSS1",
		Session:     "2024/2025",
		Term:        "First Term",
	}
}

func F(f float64) *float64 { return &f }
func S(s string) *string    { return &s }
func I(i int) *int          { return &i }
