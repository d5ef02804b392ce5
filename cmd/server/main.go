package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errPanicRecovered = errors.New("panic recovered")

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "auth-engine",
		Short:         "Multi-tenant authentication server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Optional .env file loaded before reading the environment")

	loadConfig := func() config.Config {
		var c config.Config
		if envFile != "" {
			c = config.Load(envFile)
		} else {
			c = config.Load()
		}
		setupLogging(c.GetEnv())
		return c
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := loadConfig()
			for {
				err := run(c)
				if !errors.Is(err, errPanicRecovered) {
					if err != nil {
						log.Error().Err(err).Msg("Error running server")
						return err
					}
					break
				}
				time.Sleep(1 * time.Second)
			}
			log.Info().Msg("Server stopped")
			return nil
		},
	}

	var tenantID, userID string
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete one batch of expired login sessions, sessions, refresh tokens and codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := loadConfig()
			a, err := newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			stats := a.auth.Cleanup(cmd.Context(), auth.CleanupFilter{TenantID: tenantID, UserID: userID})
			log.Info().
				Int("login_sessions", stats.LoginSessions).
				Int("sessions", stats.Sessions).
				Int("refresh_tokens", stats.RefreshTokens).
				Int("codes", stats.Codes).
				Int("errors", stats.Errors).
				Msg("cleanup finished")
			if stats.Errors > 0 {
				return fmt.Errorf("cleanup finished with %d errors", stats.Errors)
			}
			return nil
		},
	}
	cleanupCmd.Flags().StringVar(&tenantID, "tenant", "", "Only clean up this tenant")
	cleanupCmd.Flags().StringVar(&userID, "user", "", "Only clean up this user")

	root.AddCommand(serveCmd, cleanupCmd)
	return root
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := server.New(c, a.auth, server.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(srv)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
