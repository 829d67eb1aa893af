package main

import (
	"context"
	"fmt"
	"os"

	"ticketone/sync/internal/model"
)

func runLogin(ctx context.Context, args []string) error {
	f := newFlags("login")
	channelFlag := f.channel()
	email := f.StringP("email", "e", "", "account email")
	password := f.StringP("password", "p", "", "account password (or TICKETONE_PASSWORD)")
	if err := f.Parse(args); err != nil {
		return err
	}
	channel, err := parseChannel(*channelFlag)
	if err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("TICKETONE_PASSWORD")
	}

	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	identity, err := a.Login(ctx, channel, *email, *password)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Logged in as %s (%s).\n", identity.DisplayName(), channel)
	return nil
}

func runRegister(ctx context.Context, args []string) error {
	f := newFlags("register")
	channelFlag := f.channel()
	var req model.RegisterRequest
	f.StringVarP(&req.Email, "email", "e", "", "account email")
	f.StringVarP(&req.Password, "password", "p", "", "account password (or TICKETONE_PASSWORD)")
	f.StringVar(&req.FirstName, "first-name", "", "attendee first name")
	f.StringVar(&req.LastName, "last-name", "", "attendee last name")
	f.StringVar(&req.Name, "name", "", "organization name")
	f.StringVar(&req.Phone, "phone", "", "contact phone")
	if err := f.Parse(args); err != nil {
		return err
	}
	channel, err := parseChannel(*channelFlag)
	if err != nil {
		return err
	}
	if req.Password == "" {
		req.Password = os.Getenv("TICKETONE_PASSWORD")
	}

	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.Register(ctx, channel, req); err != nil {
		return fail(err)
	}
	fmt.Println("Registered. You can now log in.")
	return nil
}

func runLogout(ctx context.Context, args []string) error {
	f := newFlags("logout")
	channelFlag := f.channel()
	if err := f.Parse(args); err != nil {
		return err
	}
	channel, err := parseChannel(*channelFlag)
	if err != nil {
		return err
	}

	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.Sessions.Current(channel).IsLoggedIn {
		fmt.Printf("Not logged in as %s.\n", channel)
		return nil
	}
	a.Logout(channel)
	fmt.Printf("Logged out of %s.\n", channel)
	return nil
}

func runWhoami(ctx context.Context, args []string) error {
	f := newFlags("whoami")
	if err := f.Parse(args); err != nil {
		return err
	}
	a, err := open(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	for _, channel := range model.Channels {
		state := a.Sessions.Current(channel)
		switch {
		case !state.IsLoggedIn:
			fmt.Printf("%-10s not logged in\n", channel)
		case state.Identity != nil:
			fmt.Printf("%-10s %s <%s>\n", channel, state.Identity.DisplayName(), state.Identity.Email)
		default:
			fmt.Printf("%-10s logged in\n", channel)
		}
	}
	return nil
}
