// Command equipctl is the terminal client for the equipment management
// service. It signs in through the session coordinator, so concurrent
// instances negotiate account conflicts over the broadcast channel the
// same way browser tabs do.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/metrolabs/equiptrack/internal/api"
	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/infra/app"
	"github.com/metrolabs/equiptrack/internal/infra/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatalf("failed to init client: %v", err)
	}
	defer func() {
		_ = application.Close()
	}()

	if err := run(ctx, application, os.Args[1:]); err != nil {
		if errors.Is(err, domain.ErrLoginCancelled) {
			fmt.Fprintln(os.Stderr, "login cancelled")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "equipctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.Application, args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	switch args[0] {
	case "login":
		return runLogin(ctx, application, args[1:])
	case "logout":
		application.Coordinator.Logout(ctx)
		fmt.Println("signed out")
		return nil
	case "whoami":
		return runWhoami(ctx, application)
	case "equipment":
		return runEquipment(ctx, application, args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: equipctl <command>

commands:
  login      sign in, resolving session conflicts interactively
  logout     sign out and announce it to other instances
  whoami     verify the current session and print the account
  equipment  list equipment (flags: -skip, -limit, -sort, -order)`)
}

func runLogin(ctx context.Context, application *app.Application, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	username := flags.String("user", "", "account username")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Print("username: ")
		if _, err := fmt.Scanln(username); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}

	fmt.Print("password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	session, err := application.Coordinator.Login(ctx, *username, string(password))
	if err != nil {
		return err
	}

	fmt.Printf("signed in as %s\n", session.User.Username)
	return nil
}

func runWhoami(ctx context.Context, application *app.Application) error {
	if err := application.Coordinator.CheckSessionValidity(ctx); err != nil {
		return err
	}
	profile, ok := application.Coordinator.CurrentUser()
	if !ok {
		return domain.ErrNoSession
	}
	role := "user"
	if profile.IsAdmin {
		role = "admin"
	}
	fmt.Printf("%s (%s)\n", profile.Username, role)
	return nil
}

func runEquipment(ctx context.Context, application *app.Application, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return errors.New(`equipment supports: list`)
	}

	flags := flag.NewFlagSet("equipment list", flag.ContinueOnError)
	skip := flags.Int("skip", 0, "rows to skip")
	limit := flags.Int("limit", 20, "rows to return")
	sortField := flags.String("sort", "", "sort field")
	sortOrder := flags.String("order", "", "sort order (asc or desc)")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	page, err := application.API.Equipment.List(ctx, api.ListParams{
		Skip:      *skip,
		Limit:     *limit,
		SortField: *sortField,
		SortOrder: *sortOrder,
	})
	if err != nil {
		return err
	}

	for _, item := range page.Items {
		fmt.Printf("%s\t%s\t%s\t%s\n",
			strconv.FormatInt(item.ID, 10), item.Name, item.Model, item.Status)
	}
	fmt.Printf("%d of %d\n", len(page.Items), page.Total)
	return nil
}
