package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// step is one unit of a multi-collaborator operation.
type step struct {
	name string

	// critical steps abort the operation on failure. Failures of other
	// steps are logged and skipped.
	critical bool

	run func(ctx context.Context) error

	// compensate undoes run after a later critical step fails. Optional.
	compensate func(ctx context.Context) error
}

// runSteps executes steps in order. When a critical step fails, the
// compensations of the steps that already succeeded run in reverse order
// and the failing step's error is returned.
func runSteps(ctx context.Context, logger logrus.FieldLogger, steps []step) error {
	done := make([]step, 0, len(steps))

	for _, st := range steps {
		err := st.run(ctx)
		if err == nil {
			done = append(done, st)
			continue
		}

		if !st.critical {
			logger.WithError(err).WithField("step", st.name).Warn("non-critical step failed")
			continue
		}

		logger.WithError(err).WithField("step", st.name).Error("step failed, compensating")
		compensate(ctx, logger, done)
		return err
	}

	return nil
}

func compensate(ctx context.Context, logger logrus.FieldLogger, done []step) {
	// The caller's context may already be cancelled.
	ctx = context.WithoutCancel(ctx)

	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(ctx); err != nil {
			logger.WithError(err).WithField("step", st.name).Error("compensation failed")
		}
	}
}
