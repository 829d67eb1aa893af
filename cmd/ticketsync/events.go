package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/model"
)

const dateLayout = "Mon 02 Jan 2006 15:04"

func printEvents(w io.Writer, events []model.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tCITY\tSEATS LEFT")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\n", e.ID, e.Name, e.Date.Local().Format(dateLayout), e.City, e.SeatsAvailable, e.Capacity)
	}
	_ = tw.Flush()
}

func printPage(w io.Writer, page model.Page, history int) {
	printEvents(w, page.Items)
	more := "last page"
	if page.HasNext {
		more = "more available"
	}
	fmt.Fprintf(w, "-- page %d, %s --\n", history+1, more)
}

func runEvents(ctx context.Context, args []string) error {
	f := newFlags("events")
	limit := f.IntP("limit", "n", 0, "page size (minimum 10)")
	cursor := f.String("cursor", "", "cursor of the page to show (from a previous page)")
	if err := f.Parse(args); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	cat := a.Catalog(*limit)
	page, err := cat.FetchPage(ctx, model.CursorToken(*cursor), cat.Limit())
	if err != nil {
		return fail(err)
	}
	printEvents(os.Stdout, page.Items)
	if page.HasNext {
		fmt.Printf("Next page: ticketsync events --cursor %s --limit %d\n", page.CursorOut, cat.Limit())
	}
	return nil
}

// runBrowse reads n, p, l <size> and q from stdin.
func runBrowse(ctx context.Context, args []string) error {
	f := newFlags("browse")
	limit := f.IntP("limit", "n", 0, "initial page size (minimum 10)")
	if err := f.Parse(args); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	cat := a.Catalog(*limit)
	page, err := cat.Load(ctx)
	if err != nil {
		return fail(err)
	}
	printPage(os.Stdout, page, len(cat.History()))

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("[n]ext [p]rev [l]imit <size> [q]uit > ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "n", "next":
			page, err = cat.Next(ctx)
		case "p", "prev":
			page, err = cat.Prev(ctx)
		case "l", "limit":
			if len(fields) < 2 {
				fmt.Println("usage: l <size>")
				continue
			}
			size, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				fmt.Println("page size must be a number")
				continue
			}
			page, err = cat.SetLimit(ctx, size)
		case "q", "quit":
			return nil
		default:
			fmt.Println("unknown command")
			continue
		}

		if err != nil {
			fmt.Println(apperr.UserMessage(err))
			continue
		}
		printPage(os.Stdout, page, len(cat.History()))
	}
}

func idFlag(f *flags, name, usage string) *int64 {
	return f.Int64(name, 0, usage)
}

func requireID(name string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func runEvent(ctx context.Context, args []string) error {
	f := newFlags("event")
	id := idFlag(f, "id", "event id")
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

	event, err := a.Event(ctx, *id)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("%s\n", event.Name)
	fmt.Printf("  by %s\n", event.OrganizedBy)
	fmt.Printf("  %s\n", event.Date.Local().Format(dateLayout))
	fmt.Printf("  %s\n", strings.Join(nonEmpty(event.Address, event.City, event.State, event.Country), ", "))
	fmt.Printf("  %d of %d seats booked\n", event.SeatsBooked(), event.Capacity)
	if event.Key != "" {
		if image, err := a.EventImage(ctx, event); err == nil {
			fmt.Printf("  image: %s\n", image)
		}
	}

	upcoming, err := a.Upcoming(ctx, event)
	if err == nil && len(upcoming) > 0 {
		fmt.Printf("\nMore in %s:\n", event.City)
		printEvents(os.Stdout, upcoming)
	}
	return nil
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDate accepts RFC 3339 or "2006-01-02 15:04" in local time.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: use RFC 3339 or YYYY-MM-DD HH:MM", raw)
	}
	return t, nil
}
