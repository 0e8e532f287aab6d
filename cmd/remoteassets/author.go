package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/openmined/remoteassets/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newAuthorCmd())
}

// newAuthorCmd serves the package manager protocol over its own repository, a stand-in
// for the remote author during development.
func newAuthorCmd() *cobra.Command {
	var addr, user, pass, dbPath, seedPath string

	authorCmd := &cobra.Command{
		Use:   "author",
		Short: "Run a development remote author server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			repo, err := openRepository("author.repository.path", dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			if seedPath != "" {
				if !utils.FileExists(seedPath) {
					return fmt.Errorf("seed file not found: %s", seedPath)
				}
				seed, err := packmgr.LoadSeed(seedPath)
				if err != nil {
					return err
				}
				session := repo.Login(repository.AdminUser)
				err = seed.Apply(ctx, session)
				session.Close()
				if err != nil {
					return err
				}
			}

			author := packmgr.NewAuthorServer(repo, user, pass)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           author.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("author server start", "addr", addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			defer slog.Info("Bye!")
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	authorCmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:4503", "Address to bind the author server")
	authorCmd.Flags().StringVarP(&user, "user", "u", "admin", "Basic auth user")
	authorCmd.Flags().StringVarP(&pass, "pass", "p", "admin", "Basic auth password")
	authorCmd.Flags().StringVar(&dbPath, "db", "author.db", "Author repository, relative to the data directory")
	authorCmd.Flags().StringVarP(&seedPath, "seed", "s", "", "YAML seed applied on start")

	return authorCmd
}
