package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"ticketone/sync/internal/apperr"
	"ticketone/sync/internal/client"
	"ticketone/sync/internal/config"
	"ticketone/sync/internal/log"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/monitoring"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "Log in as an attendee or organizer", runLogin},
	{"register", "Create an attendee or organizer account", runRegister},
	{"logout", "End the session of a channel", runLogout},
	{"whoami", "Show the active sessions", runWhoami},
	{"events", "Print one page of the public catalog", runEvents},
	{"browse", "Page through the catalog interactively", runBrowse},
	{"event", "Show one event with upcoming events nearby", runEvent},
	{"create-event", "Upload an image and publish an event (organizer)", runCreateEvent},
	{"my-events", "List your organization's events (organizer)", runMyEvents},
	{"update-event", "Edit an event (organizer)", runUpdateEvent},
	{"delete-event", "Delete an event (organizer)", runDeleteEvent},
	{"book", "Book seats for an event (attendee)", runBook},
	{"bookings", "List your bookings (attendee)", runBookings},
	{"cancel", "Cancel a booking (attendee)", runCancel},
	{"ticket", "Print the ticket URL of a booking (attendee)", runTicket},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	name := args[0]
	switch name {
	case "-h", "--help", "help":
		printUsage()
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(ctx, args[1:])
		}
	}
	printUsage()
	return fmt.Errorf("unknown subcommand: %q", name)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: ticketsync <subcommand> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Subcommands:")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-13s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'ticketsync <subcommand> --help' for subcommand flags.")
}

// flags is the per-subcommand flag set; every subcommand accepts --config.
type flags struct {
	*pflag.FlagSet
	configPath *string
	verbose    *bool
}

func newFlags(name string) *flags {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return &flags{
		FlagSet:    fs,
		configPath: fs.String("config", "", "path to a config file"),
		verbose:    fs.BoolP("verbose", "v", false, "log at debug level"),
	}
}

func (f *flags) channel() *string {
	return f.StringP("channel", "c", string(model.ChannelAttendee), "identity channel: attendee or organizer")
}

func parseChannel(raw string) (model.Channel, error) {
	channel, err := model.ParseChannel(raw)
	if err != nil {
		return "", fmt.Errorf("--channel: %w", err)
	}
	return channel, nil
}

// app opens the client container for one CLI invocation.
type app struct {
	*client.Client
	logger  zerolog.Logger
	metrics *http.Server
}

func open(ctx context.Context, f *flags) (*app, error) {
	cfg, err := config.LoadFile(*f.configPath)
	if err != nil {
		return nil, err
	}
	logger := log.New(cfg.Environment)
	if !*f.verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	c, err := client.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open client: %w", err)
	}
	a := &app{Client: c, logger: logger}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.Handler())
		a.metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
	}
	return a, nil
}

func (a *app) close() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	if err := a.Client.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close client")
	}
}

// fail prints the user-facing line for err and reports it as handled.
func fail(err error) error {
	fmt.Fprintln(os.Stderr, apperr.UserMessage(err))
	return errReported
}
