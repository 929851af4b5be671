package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeryldev/patingin/internal/api"
	"github.com/jeryldev/patingin/internal/review"
	"github.com/jeryldev/patingin/internal/security"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		origins  []string
		newToken bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review history and rule catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if newToken {
				return a.printToken()
			}
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.API.Addr
			}
			if len(origins) == 0 {
				origins = a.cfg.API.AllowedOrigins
			}
			if h := a.cfg.API.TokenHash; h != "" {
				if err := security.ValidHash(h); err != nil {
					return &exitError{code: 1, err: err}
				}
			}

			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()

			reg, _ := a.registry()
			srv := &api.Server{
				DB: db,
				Engine: review.New(reg, review.Options{
					Settings: a.cfg.ReviewSettings(),
					Ignore:   a.cfg.Settings.Ignore,
					Waivers:  a.cfg.Waivers,
					Workers:  a.cfg.Settings.Workers,
					Logger:   a.logger,
				}),
				Logger:         a.logger,
				AllowedOrigins: origins,
				TokenHash:      a.cfg.API.TokenHash,
			}
			hs := &http.Server{
				Addr:              addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- hs.ListenAndServe() }()
			fmt.Fprintf(a.stderr, "patingin API listening on http://%s (db %s)\n", addr, a.cfg.Database.DSN)
			if srv.TokenHash == "" {
				a.logger.Warn("write endpoints are unauthenticated; set api.token_hash to protect them")
			}

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return &exitError{code: 1, err: err}
				}
				return nil
			case <-ctx.Done():
			}
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.logger.Info("shutting down")
			return hs.Shutdown(shutdown)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8484", "listen address")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins (* for any)")
	cmd.Flags().BoolVar(&newToken, "new-token", false, "print a fresh API token and its hash, then exit")
	return cmd
}

func (a *app) printToken() error {
	tok, err := security.NewToken(32)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	hash, err := security.HashToken(tok)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	fmt.Fprintf(a.stdout, "token: %s\n", tok)
	fmt.Fprintf(a.stdout, "token_hash: %s\n", hash)
	fmt.Fprintln(a.stderr, "Put token_hash under api: in .patingin.yml and send the token as a Bearer header.")
	return nil
}
