package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

type SweepReservationsArgs struct{}

func (SweepReservationsArgs) Kind() string { return "sweep_reservations" }

// ReservationExpirer is the contract the sweep needs from the reservation
// manager.
type ReservationExpirer interface {
	ExpireDueReservations(ctx context.Context, now time.Time) (int, error)
}

// SweepWorker refunds reservations whose TTL ran out. Each run re-reads the
// due set, so an interrupted sweep just finishes on the next tick.
type SweepWorker struct {
	river.WorkerDefaults[SweepReservationsArgs]
	reservations ReservationExpirer
	log          *slog.Logger
}

func NewSweepWorker(reservations ReservationExpirer, log *slog.Logger) *SweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SweepWorker{reservations: reservations, log: log}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepReservationsArgs]) error {
	refunded, err := w.reservations.ExpireDueReservations(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("expire due reservations: %w", err)
	}
	if refunded > 0 {
		w.log.Info("reservation sweep refunded expired escrows", "count", refunded)
	}
	return nil
}

// PeriodicJob schedules the sweep on a fixed interval, with one run at
// startup to catch anything due while the service was down.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepReservationsArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
