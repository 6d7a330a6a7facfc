package stats

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/tenant"
)

type (
	Repository interface {
		// CohortScores returns the total score of every result in the cohort.
		// forUpdate locks the rows until the surrounding transaction ends.
		CohortScores(ctx context.Context, key CohortKey, forUpdate bool, exec ...core.DBExecutor) ([]Score, error)
		// QueryCohorts returns every cohort of the school that has results or statistics.
		QueryCohorts(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]CohortKey, error)
		GetStatistics(ctx context.Context, key CohortKey, exec ...core.DBExecutor) (ClassStatistics, error)
		// SaveStatistics inserts or overwrites the statistics row of the cohort.
		SaveStatistics(ctx context.Context, st ClassStatistics, exec ...core.DBExecutor) error
		DeleteStatistics(ctx context.Context, key CohortKey, exec ...core.DBExecutor) error
		SetPositions(ctx context.Context, key CohortKey, positions []Position, exec ...core.DBExecutor) error
	}

	Engine interface {
		Statistics(ctx context.Context, p tenant.Principal, key CohortKey) (ClassStatistics, error)
		Recalculate(ctx context.Context, p tenant.Principal, key CohortKey) (ClassStatistics, error)
		UpdatePositions(ctx context.Context, p tenant.Principal, key CohortKey) ([]Position, error)
		// Recompute runs Recalculate and UpdatePositions, each in its own transaction.
		Recompute(ctx context.Context, p tenant.Principal, key CohortKey) (Recomputation, error)
		// RecomputeSchool recomputes every cohort of the caller's school, at most concurrency at a time.
		RecomputeSchool(ctx context.Context, p tenant.Principal, concurrency int) (int, error)
	}

	engine struct {
		tx       core.Transactor
		repo     Repository
		validate *validator.Validate
		metrics  core.Metrics
	}
)

var _ Engine = (*engine)(nil) // interface compliance check

func NewEngine(tx core.Transactor, repo Repository, validate *validator.Validate, metrics core.Metrics) Engine {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &engine{tx: tx, repo: repo, validate: validate, metrics: metrics}
}

// prepare authorizes the caller and scopes the key to the caller's school.
func (eng *engine) prepare(p tenant.Principal, action tenant.Action, key *CohortKey) error {
	key.SchoolID = p.SchoolID
	if err := tenant.Authorize(p, action, tenant.Resource{SchoolID: key.SchoolID}).Err(); err != nil {
		return err
	}
	return key.Validate(eng.validate)
}

func (eng *engine) Statistics(ctx context.Context, p tenant.Principal, key CohortKey) (ClassStatistics, error) {
	if err := eng.prepare(p, tenant.ActionViewStatistics, &key); err != nil {
		return ClassStatistics{}, err
	}
	return eng.repo.GetStatistics(ctx, key)
}

func (eng *engine) Recalculate(ctx context.Context, p tenant.Principal, key CohortKey) (ClassStatistics, error) {
	if err := eng.prepare(p, tenant.ActionRecalculate, &key); err != nil {
		return ClassStatistics{}, err
	}
	return eng.recalculate(ctx, key)
}

func (eng *engine) recalculate(ctx context.Context, key CohortKey) (ClassStatistics, error) {
	var st ClassStatistics
	err := eng.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		scores, err := eng.repo.CohortScores(ctx, key, false, exec)
		if err != nil {
			return errors.Wrap(err, "reading cohort scores")
		}

		st = ClassStatistics{CohortKey: key}
		if len(scores) == 0 {
			return errors.Wrap(eng.repo.DeleteStatistics(ctx, key, exec), "deleting statistics")
		}

		totals := make([]float64, len(scores))
		for i, s := range scores {
			totals[i] = s.TotalScore
		}
		sum := Summarize(totals)
		st.StudentCount = sum.Count
		st.AverageScore = sum.Mean
		st.HighestScore = sum.Highest
		st.LowestScore = sum.Lowest
		return errors.Wrap(eng.repo.SaveStatistics(ctx, st, exec), "saving statistics")
	})
	if err != nil {
		return ClassStatistics{}, errors.Wrap(err, "recalculating statistics")
	}
	return st, nil
}

func (eng *engine) UpdatePositions(ctx context.Context, p tenant.Principal, key CohortKey) ([]Position, error) {
	if err := eng.prepare(p, tenant.ActionRecalculate, &key); err != nil {
		return nil, err
	}
	return eng.updatePositions(ctx, key)
}

func (eng *engine) updatePositions(ctx context.Context, key CohortKey) ([]Position, error) {
	var positions []Position
	err := eng.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		scores, err := eng.repo.CohortScores(ctx, key, true, exec)
		if err != nil {
			return errors.Wrap(err, "reading cohort scores")
		}

		totals := make([]float64, len(scores))
		for i, s := range scores {
			totals[i] = s.TotalScore
		}
		ranks := Rank(totals)

		positions = make([]Position, len(scores))
		for i, s := range scores {
			positions[i] = Position{ResultID: s.ResultID, StudentID: s.StudentID, TotalScore: s.TotalScore, Position: ranks[i]}
		}
		if len(positions) == 0 {
			return nil
		}
		return errors.Wrap(eng.repo.SetPositions(ctx, key, positions, exec), "setting positions")
	})
	if err != nil {
		return nil, errors.Wrap(err, "updating positions")
	}
	sortPositions(positions)
	return positions, nil
}

func (eng *engine) Recompute(ctx context.Context, p tenant.Principal, key CohortKey) (Recomputation, error) {
	if err := eng.prepare(p, tenant.ActionRecalculate, &key); err != nil {
		return Recomputation{}, err
	}
	rc, err := eng.recompute(ctx, key)
	eng.metrics.CohortRecomputed(err)
	return rc, err
}

func (eng *engine) recompute(ctx context.Context, key CohortKey) (Recomputation, error) {
	var rc Recomputation
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := eng.recalculate(gCtx, key)
		rc.Statistics = st
		return err
	})
	g.Go(func() error {
		positions, err := eng.updatePositions(gCtx, key)
		rc.Positions = positions
		return err
	})
	if err := g.Wait(); err != nil {
		return Recomputation{}, err
	}
	return rc, nil
}

func (eng *engine) RecomputeSchool(ctx context.Context, p tenant.Principal, concurrency int) (int, error) {
	if err := tenant.Authorize(p, tenant.ActionRecalculate, tenant.Resource{SchoolID: p.SchoolID}).Err(); err != nil {
		return 0, err
	}
	cohorts, err := eng.repo.QueryCohorts(ctx, p.SchoolID)
	if err != nil {
		return 0, errors.Wrap(err, "querying cohorts")
	}

	if concurrency < 1 {
		concurrency = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, key := range cohorts {
		key := key
		g.Go(func() error {
			_, err := eng.recompute(gCtx, key)
			eng.metrics.CohortRecomputed(err)
			return errors.Wrapf(err, "recomputing %s", key)
		})
	}
	if err = g.Wait(); err != nil {
		return 0, err
	}
	return len(cohorts), nil
}
