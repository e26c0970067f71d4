package stores

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Resettable is implemented by the stores of this package
type Resettable interface {
	resetGuard() *sync.RWMutex
	flush(ctx context.Context) error
	clear()
}

// ResetAll flushes every store and clears them only when every flush
// succeeded; otherwise nothing is cleared and the joined error is returned.
// With force the stores are cleared regardless. Mutations are held off from
// the first flush until the stores are cleared.
func ResetAll(ctx context.Context, force bool, stores ...Resettable) error {
	for _, s := range stores {
		s.resetGuard().Lock()
		defer s.resetGuard().Unlock()
	}

	var errs []error
	for _, s := range stores {
		errs = append(errs, s.flush(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		if !force {
			return err
		}
		log.Warnf("Forced reset is discarding unsaved writes: %s", err)
	}

	for _, s := range stores {
		s.clear()
	}
	return nil
}
