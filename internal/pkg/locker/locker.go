package locker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_LOCK_EXPIRY = 10 * time.Second
	DEFAULT_LOCK_TRIES  = 8
)

var ErrLocked = errors.New("resource locked")

// Locker hands out redsync mutexes so callers only see a release func.
type Locker struct {
	rs     *redsync.Redsync
	logger logrus.FieldLogger
	expiry time.Duration
	tries  int
}

func NewLocker(rs *redsync.Redsync, logger logrus.FieldLogger) *Locker {
	return &Locker{rs, logger, DEFAULT_LOCK_EXPIRY, DEFAULT_LOCK_TRIES}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.expiry), redsync.WithTries(l.tries))
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, ErrLocked
		}
		return nil, err
	}

	return func() {
		// the caller's context may already be cancelled here
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			l.logger.WithField("key", key).WithError(err).Warn("unlock failed")
		}
	}, nil
}
