package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/tablebot/internal/app/bootstrap"
	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/bookings"
	appconfig "github.com/wolfman30/tablebot/internal/config"
	"github.com/wolfman30/tablebot/internal/events"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/internal/timewindow"
	"github.com/wolfman30/tablebot/pkg/logging"
)

// reservations is the part of reservation.Manager the CLI uses.
type reservations interface {
	Now() time.Time
	AvailabilityText(ctx context.Context) (string, error)
	FreeSlots(ctx context.Context, from, to timewindow.Date) (map[timewindow.Date][]availability.FreeSlot, error)
	FindByPhone(ctx context.Context, phone string) ([]reservation.Reservation, error)
	FindByCode(ctx context.Context, code string) (*reservation.Reservation, error)
	Cancel(ctx context.Context, code string) (*reservation.Reservation, error)
	Reschedule(ctx context.Context, code string, newStart time.Time) (*reservation.Reservation, error)
}

// backend opens the reservation manager and returns a cleanup func.
type backend func(ctx context.Context) (reservations, func(), error)

func newRootCmd(open backend) *cobra.Command {
	root := &cobra.Command{
		Use:           "reservectl",
		Short:         "Inspect and manage restaurant reservations from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newSlotsCmd(open))
	root.AddCommand(newFreeCmd(open))
	root.AddCommand(newLookupCmd(open))
	root.AddCommand(newCancelCmd(open))
	root.AddCommand(newRescheduleCmd(open))

	return root
}

// defaultBackend wires the same calendar, ledger and outbox as the API so
// changes made here reach staff notifications too.
func defaultBackend(ctx context.Context) (reservations, func(), error) {
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	policy, err := cfg.Policy()
	if err != nil {
		return nil, nil, err
	}
	source, err := bootstrap.BuildEventSource(ctx, cfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var opts []reservation.Option
	cleanup := func() {}
	if pool != nil {
		opts = append(opts,
			reservation.WithLedger(bookings.NewLedger(pool, logger)),
			reservation.WithPublisher(events.NewReservationPublisher(events.NewOutboxStore(pool))),
		)
		cleanup = pool.Close
	}
	return reservation.NewManager(source, policy, logger, opts...), cleanup, nil
}
