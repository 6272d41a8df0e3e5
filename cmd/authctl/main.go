// Command authctl drives a running auth-session through the client-side
// session flow: login, identity check, route guard decisions and logout.
//
//	authctl smoke -server http://localhost:8084 -email a@b.co -password x -role student -path /en/teacher
//	authctl introspect -grpc localhost:9094 -token <session token>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/clients"
	"semaphore/auth-session/internal/config"
	"semaphore/auth-session/internal/guard"
	sessiongrpc "semaphore/auth-session/internal/grpc"
	"semaphore/auth-session/internal/reconciler"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("authctl")
	cfg := config.Load()

	var err error
	switch os.Args[1] {
	case "smoke":
		err = smoke(os.Args[2:], cfg, logger)
	case "introspect":
		err = introspect(os.Args[2:], cfg)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authctl smoke|introspect [flags]")
	os.Exit(2)
}

func smoke(args []string, cfg config.Config, logger logr.Logger) error {
	fs := flag.NewFlagSet("smoke", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8084", "auth-session base URL")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	roleName := fs.String("role", "student", "claimed user type")
	path := fs.String("path", "/en/dashboard", "protected path to evaluate")
	locale := fs.String("locale", cfg.DefaultLocale, "default locale")
	timeout := fs.Duration("timeout", cfg.ClientTimeout, "per-request timeout")
	verbosity := fs.Int("v", 0, "log verbosity")
	_ = fs.Parse(args)
	stdr.SetVerbosity(*verbosity)

	role, err := access.ParseRole(*roleName)
	if err != nil {
		return err
	}
	client, err := clients.New(*server, *timeout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := reconciler.New(client, reconciler.Options{Timeout: *timeout, DefaultLocale: *locale, Logger: logger})
	area := areaFor(*path, *locale)
	watcher := guard.Watch(rec, area.Allowed, *path, *locale, func(d guard.Decision) {
		fmt.Printf("guard %s: %s %s\n", *path, d.Action, d.RedirectTo)
	})
	defer watcher.Stop()

	rec.Start(ctx)
	if err := waitResolved(rec, *timeout); err != nil {
		return err
	}
	fmt.Printf("initial state: %s\n", rec.State().Status)

	outcome := rec.Login(ctx, reconciler.Credentials{
		Email:       *email,
		Password:    *password,
		UserType:    role,
		CurrentPath: *path,
	})
	if !outcome.Success {
		return fmt.Errorf("login failed: %s", outcome.Message)
	}
	fmt.Printf("logged in as %s (%s), redirect to %s\n", outcome.Identity.Email, outcome.Identity.Role, outcome.RedirectTo)

	rec.Notify(reconciler.TriggerFocus)
	if identity := rec.Refresh(ctx).Identity; identity != nil {
		fmt.Printf("who am I: %s %s\n", identity.ID, identity.Role)
	}

	rec.Logout(ctx)
	fmt.Printf("after logout: %s\n", rec.State().Status)
	return nil
}

// areaFor finds the area declaration for the path's first non-locale
// segment; unknown paths are treated as open to any signed-in user.
func areaFor(path, defaultLocale string) access.Area {
	locale := access.LocaleFromPath(path, defaultLocale)
	for _, area := range access.Areas() {
		prefix := access.Localize(locale, area.Resource)
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return area
		}
	}
	return access.Area{Resource: access.ResourceDashboard}
}

func waitResolved(rec *reconciler.Reconciler, timeout time.Duration) error {
	done := make(chan struct{})
	var once bool
	cancel := rec.Subscribe(func(s reconciler.State) {
		if !once && (s.Status == reconciler.StatusAuthenticated || s.Status == reconciler.StatusAnonymous) {
			once = true
			close(done)
		}
	})
	defer cancel()

	if status := rec.State().Status; status == reconciler.StatusAuthenticated || status == reconciler.StatusAnonymous {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout + time.Second):
		return fmt.Errorf("session did not resolve within %s", timeout)
	}
}

func introspect(args []string, cfg config.Config) error {
	fs := flag.NewFlagSet("introspect", flag.ExitOnError)
	addr := fs.String("grpc", "localhost:9094", "auth-session gRPC address")
	token := fs.String("token", "", "session token to resolve")
	serviceToken := fs.String("service-token", cfg.ServiceAuthToken, "shared service token")
	timeout := fs.Duration("timeout", cfg.ClientTimeout, "call timeout")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := sessiongrpc.Dial(ctx, *addr, *serviceToken, *timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	identity, err := client.Introspect(ctx, *token)
	if err != nil {
		return err
	}
	if identity == nil {
		fmt.Println("inactive")
		return nil
	}
	fmt.Printf("active: %s %s %s\n", identity.ID, identity.Email, identity.Role)
	return nil
}
