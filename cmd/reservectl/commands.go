package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

const defaultFreeDays = 7

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reservectl %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

func newSlotsCmd(open backend) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List bookable slots for the coming weeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			text, err := mgr.AvailabilityText(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newFreeCmd(open backend) *cobra.Command {
	var fromRaw, toRaw string

	c := &cobra.Command{
		Use:   "free",
		Short: "Show free intervals per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			from := timewindow.DateOf(mgr.Now())
			if fromRaw != "" {
				if from, err = timewindow.ParseDate(fromRaw); err != nil {
					return fmt.Errorf("invalid --from (want YYYY-MM-DD)")
				}
			}
			to := from.AddDays(defaultFreeDays - 1)
			if toRaw != "" {
				if to, err = timewindow.ParseDate(toRaw); err != nil {
					return fmt.Errorf("invalid --to (want YYYY-MM-DD)")
				}
			}
			if to.Before(from) {
				return fmt.Errorf("--to is before --from")
			}

			free, err := mgr.FreeSlots(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			dates := make([]timewindow.Date, 0, len(free))
			for d := range free {
				dates = append(dates, d)
			}
			sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

			out := cmd.OutOrStdout()
			for _, d := range dates {
				fmt.Fprintln(out, d.String())
				for _, s := range free[d] {
					fmt.Fprintf(out, "  %s - %s  booked=%d\n",
						s.Interval.Start().Format("15:04"), s.Interval.End().Format("15:04"), s.Overlap)
				}
			}
			return nil
		},
	}
	c.Flags().StringVar(&fromRaw, "from", "", "first day (YYYY-MM-DD), defaults to today")
	c.Flags().StringVar(&toRaw, "to", "", "last day (YYYY-MM-DD), defaults to a week after --from")
	return c
}

func newLookupCmd(open backend) *cobra.Command {
	var phone, code string

	c := &cobra.Command{
		Use:   "lookup",
		Short: "Find reservations by phone number or code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, code = strings.TrimSpace(phone), strings.TrimSpace(code)
			if (phone == "") == (code == "") {
				return fmt.Errorf("exactly one of --phone or --code is required")
			}
			mgr, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			if code != "" {
				r, err := mgr.FindByCode(cmd.Context(), code)
				if err != nil {
					return friendly(err, code)
				}
				printReservation(out, *r)
				return nil
			}

			found, err := mgr.FindByPhone(cmd.Context(), phone)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintf(out, "no reservations for %s\n", phone)
				return nil
			}
			for _, r := range found {
				printReservation(out, r)
			}
			return nil
		},
	}
	c.Flags().StringVar(&phone, "phone", "", "phone number or part of it")
	c.Flags().StringVar(&code, "code", "", "reservation code")
	return c
}

func newCancelCmd(open backend) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel CODE",
		Short: "Cancel a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			r, err := mgr.Cancel(cmd.Context(), args[0])
			if err != nil {
				return friendly(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s (%s, %s)\n", r.Code, r.Name, r.Start.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func newRescheduleCmd(open backend) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule CODE START",
		Short: "Move a reservation to a new start time (e.g. 2024-05-03T12:00)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			start, err := timewindow.ParseTimestamp(args[1], mgr.Now().Location())
			if err != nil {
				return err
			}
			r, err := mgr.Reschedule(cmd.Context(), args[0], start)
			if err != nil {
				return friendly(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s - %s\n", r.Code, r.Start.Format("2006-01-02 15:04"), r.End().Format("15:04"))
			return nil
		},
	}
}

func printReservation(out io.Writer, r reservation.Reservation) {
	fmt.Fprintf(out, "%s  %s  %s - %s  %s  party=%d\n",
		r.Code, r.Start.Format("2006-01-02"), r.Start.Format("15:04"), r.End().Format("15:04"), r.Name, r.PartySize)
}

func friendly(err error, code string) error {
	if errors.Is(err, reservation.ErrNotFound) {
		return fmt.Errorf("no reservation with code %s", code)
	}
	return err
}
