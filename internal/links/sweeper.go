package links

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sweep purges every link that is expired now. Each candidate is re-checked
// under its lock with the same predicate the view flow uses.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	ids, err := s.registry.Expired(ctx, now)
	if err != nil {
		return 0, err
	}

	purged := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.sweepOne(ctx, id, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			purged++
		}
	}
	return purged, errors.Join(errs...)
}

func (s *Service) sweepOne(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	link, err := s.registry.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !link.IsExpired(now) {
		return false, nil
	}
	if err := s.expire(ctx, link, "sweep"); !errors.Is(err, ErrExpired) {
		return false, err
	}
	return true, nil
}

// RunSweeper sweeps every interval until ctx is done. A non-positive
// interval disables it and expiry stays purely lazy.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
			if n > 0 {
				s.logger.Info("sweep finished", slog.Int("purged", n))
			}
		}
	}
}
