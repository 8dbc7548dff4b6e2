package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Toggle describes one idempotent on/off operation: an existence check
// on an indicator, a conditional create and a delete that flip it, and
// optional side effects that trail the flip.
//
// The side-effect hooks are deliberately not transactional with the
// indicator write. A crash between the two leaves the indicator correct
// and the side effect stale by one step; that window is an accepted
// trade-off of the design, not something to be closed with a wider
// transaction.
type Toggle struct {
	// Name labels the toggle in logs.
	Name string

	// Check reports whether the indicator currently exists.
	Check func(ctx context.Context) (bool, error)

	// On creates the indicator with a uniqueness predicate. It must
	// return ErrAlreadyExists when a concurrent caller won the create;
	// the engine treats that as "already on", not as a failure.
	On func(ctx context.Context) error

	// Off removes the indicator.
	Off func(ctx context.Context) error

	// AfterOn runs after a successful On. Best effort: a failure is
	// logged and does not undo the flip. Optional.
	AfterOn func(ctx context.Context) error

	// AfterOff runs after a successful Off. Best effort. Optional.
	AfterOff func(ctx context.Context) error
}

// RunToggle executes the toggle pattern and returns the new state:
// true when the indicator now exists, false when it no longer does.
func RunToggle(ctx context.Context, logger *zap.Logger, t Toggle) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	on, err := t.Check(ctx)
	if err != nil {
		return false, err
	}

	if on {
		if err := t.Off(ctx); err != nil {
			return false, err
		}
		if t.AfterOff != nil {
			if err := t.AfterOff(ctx); err != nil {
				logger.Warn("toggle side effect failed after off",
					zap.String("toggle", t.Name),
					zap.Error(err),
				)
			}
		}
		return false, nil
	}

	if err := t.On(ctx); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// A concurrent caller turned it on first. The indicator is in
			// the requested state and the winner owns the side effects.
			logger.Debug("toggle lost create race",
				zap.String("toggle", t.Name),
			)
			return true, nil
		}
		return false, err
	}
	if t.AfterOn != nil {
		if err := t.AfterOn(ctx); err != nil {
			logger.Warn("toggle side effect failed after on",
				zap.String("toggle", t.Name),
				zap.Error(err),
			)
		}
	}
	return true, nil
}
