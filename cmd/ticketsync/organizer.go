package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"ticketone/sync/internal/model"
	"ticketone/sync/internal/upload"
)

func eventFlags(f *flags, in *model.EventInput) (date *string, private *bool) {
	f.StringVar(&in.Name, "name", "", "event name")
	f.Int64Var(&in.Capacity, "capacity", 0, "number of seats")
	date = f.String("date", "", "start time, RFC 3339 or YYYY-MM-DD HH:MM")
	f.StringVar(&in.Address, "address", "", "street address")
	f.StringVar(&in.City, "city", "", "city")
	f.StringVar(&in.State, "state", "", "state")
	f.StringVar(&in.Country, "country", "", "country")
	private = f.Bool("private", false, "hide the event from the public catalog")
	return date, private
}

func runCreateEvent(ctx context.Context, args []string) error {
	f := newFlags("create-event")
	imagePath := f.StringP("image", "i", "", "event image (jpeg or png)")
	var input model.EventInput
	date, private := eventFlags(f, &input)
	if err := f.Parse(args); err != nil {
		return err
	}

	when, err := parseDate(*date)
	if err != nil {
		return err
	}
	input.Date = when
	input.Visible = model.VisibilityPublic
	if *private {
		input.Visible = model.VisibilityPrivate
	}

	var asset upload.Asset
	if *imagePath != "" {
		content, err := os.ReadFile(*imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		asset = upload.Asset{
			FileName:    filepath.Base(*imagePath),
			ContentType: mime.TypeByExtension(filepath.Ext(*imagePath)),
			Content:     content,
		}
	}

	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	outcome := a.NewUpload().Submit(ctx, asset, input)
	if !outcome.OK() {
		a.logger.Debug().Err(outcome.Err).Str("step", string(outcome.Step)).Msg("create event failed")
		fmt.Fprintln(os.Stderr, outcome.Message())
		return errReported
	}
	fmt.Println(outcome.Message())
	return nil
}

func runMyEvents(ctx context.Context, args []string) error {
	f := newFlags("my-events")
	if err := f.Parse(args); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	events, err := a.MyEvents(ctx)
	if err != nil {
		return fail(err)
	}
	printEvents(os.Stdout, events)
	return nil
}

func runUpdateEvent(ctx context.Context, args []string) error {
	f := newFlags("update-event")
	id := idFlag(f, "id", "event id")
	var input model.EventInput
	date, private := eventFlags(f, &input)
	if err := f.Parse(args); err != nil {
		return err
	}
	if err := requireID("id", *id); err != nil {
		return err
	}
	when, err := parseDate(*date)
	if err != nil {
		return err
	}

	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	// unset flags keep the event's current values
	current, err := a.Event(ctx, *id)
	if err != nil {
		return fail(err)
	}
	update := model.EventUpdate{
		Name:     pick(input.Name, current.Name),
		DateTime: current.Date,
		Address:  pick(input.Address, current.Address),
		City:     pick(input.City, current.City),
		State:    pick(input.State, current.State),
		Country:  pick(input.Country, current.Country),
		Capacity: current.Capacity,
		Visible:  string(current.Visible),
	}
	if !when.IsZero() {
		update.DateTime = when
	}
	if input.Capacity > 0 {
		update.Capacity = input.Capacity
	}
	if f.Changed("private") {
		update.Visible = string(model.VisibilityPublic)
		if *private {
			update.Visible = string(model.VisibilityPrivate)
		}
	}

	if err := a.UpdateEvent(ctx, *id, update); err != nil {
		return fail(err)
	}
	fmt.Println("Event updated.")
	return nil
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func runDeleteEvent(ctx context.Context, args []string) error {
	f := newFlags("delete-event")
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

	if err := a.DeleteEvent(ctx, *id); err != nil {
		return fail(err)
	}
	fmt.Println("Event deleted.")
	return nil
}
