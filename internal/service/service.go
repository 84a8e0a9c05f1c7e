package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pawnshop/backend/internal/domain"
	"pawnshop/backend/internal/store"
)

const defaultLastLimit = 3

// Service holds no per-request state; one instance serves every request.
type Service struct {
	repo      store.Repository
	logger    zerolog.Logger
	lastLimit int
	now       func() time.Time
}

func New(repo store.Repository, logger zerolog.Logger, lastLimit int) *Service {
	if lastLimit < 1 {
		lastLimit = defaultLastLimit
	}

	return &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "service").Logger(),
		lastLimit: lastLimit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func requireStaff(actor domain.Actor) error {
	if !actor.IsStaff() {
		return errStaffOnly
	}
	return nil
}

// storageFailure passes typed errors through and wraps everything else as a
// storage failure, logging the cause.
func (s *Service) storageFailure(op string, err error) error {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	s.logger.Warn().Err(err).Str("op", op).Msg("store operation failed")
	return &Error{Kind: KindStorage, Message: op + " failed", Err: err}
}

// withinTx runs fn as one unit of work and normalizes its error.
func (s *Service) withinTx(ctx context.Context, op string, fn func(q store.Queries) error) error {
	if err := s.repo.WithinTx(ctx, fn); err != nil {
		return s.storageFailure(op, err)
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
