package sweeper

import (
	"context"
	"time"

	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/metrics"
)

// Publisher mirrors sweep results onto the message bus. Optional.
type Publisher interface {
	PublishRoomsSwept(ctx context.Context, deleted int64) error
}

// Sweeper garbage-collects expired rooms on a fixed interval. Expiry is
// already enforced by time on every registry operation, so a late sweep
// only costs storage, never correctness.
type Sweeper struct {
	rooms     domain.RoomRepository
	logger    logging.Logger
	publisher Publisher
	interval  time.Duration
	now       func() time.Time
}

type Options struct {
	Rooms     domain.RoomRepository
	Logger    logging.Logger
	Publisher Publisher
	Interval  time.Duration
	Now       func() time.Time
}

func New(opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Sweeper{
		rooms:     opts.Rooms,
		logger:    opts.Logger,
		publisher: opts.Publisher,
		interval:  opts.Interval,
		now:       opts.Now,
	}
}

// Run ticks until the context is cancelled. Ticks execute serially; a
// failed tick is logged and the next one still runs.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(logging.Registry, logging.Sweep, "sweeper started", map[logging.ExtraKey]any{
		logging.Latency: s.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(logging.Registry, logging.Sweep, "sweeper stopped", nil)
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single garbage-collection pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	deleted, err := s.rooms.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error(logging.Registry, logging.Sweep, "sweep failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	if deleted == 0 {
		return
	}

	metrics.SweptRooms.Add(float64(deleted))
	metrics.RoomsDeleted.WithLabelValues("expired").Add(float64(deleted))
	s.logger.Info(logging.Registry, logging.Sweep, "swept expired rooms", map[logging.ExtraKey]any{
		logging.DeletedCount: deleted,
	})

	if s.publisher != nil {
		if err := s.publisher.PublishRoomsSwept(ctx, deleted); err != nil {
			s.logger.Error(logging.RabbitMQ, logging.ExternalService, "sweep publish failed", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}
