package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

func runBook(ctx context.Context, args []string) error {
	f := newFlags("book")
	eventID := idFlag(f, "event", "event id")
	seats := f.Int64("seats", 1, "number of seats")
	if err := f.Parse(args); err != nil {
		return err
	}
	if err := requireID("event", *eventID); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	event, err := a.Event(ctx, *eventID)
	if err != nil {
		return fail(err)
	}
	result, err := a.Bookings.Book(ctx, event, *seats)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Booked %d seat(s) for %s (booking #%d).\n", result.Seats, event.Name, result.BookingID)
	return nil
}

func runBookings(ctx context.Context, args []string) error {
	f := newFlags("bookings")
	if err := f.Parse(args); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	list, err := a.Bookings.List(ctx)
	if err != nil {
		return fail(err)
	}
	if len(list.Data) == 0 {
		fmt.Println("No bookings yet.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOKING\tEVENT\tDATE\tCITY\tSEATS\tSTATUS")
	for _, b := range list.Data {
		status := "active"
		if !b.IsActive() {
			status = "cancelled"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", b.ID, b.EventName, b.EventDate.Local().Format(dateLayout), b.City, b.Seats, status)
	}
	return tw.Flush()
}

func runCancel(ctx context.Context, args []string) error {
	f := newFlags("cancel")
	id := idFlag(f, "id", "booking id")
	if err := f.Parse(args); err != nil {
		return err
	}
	if err := requireID("id", *id); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	life, err := a.Bookings.Find(ctx, *id)
	if err != nil {
		return fail(err)
	}
	result, err := life.Cancel(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Println(result.Message())
	return nil
}

func runTicket(ctx context.Context, args []string) error {
	f := newFlags("ticket")
	id := idFlag(f, "id", "booking id")
	if err := f.Parse(args); err != nil {
		return err
	}
	if err := requireID("id", *id); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	life, err := a.Bookings.Find(ctx, *id)
	if err != nil {
		return fail(err)
	}
	url, err := life.ViewTicket(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Println(url)
	return nil
}
