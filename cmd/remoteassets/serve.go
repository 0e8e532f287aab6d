package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/openmined/remoteassets/internal/actions"
	"github.com/openmined/remoteassets/internal/remoteassets"
	"github.com/openmined/remoteassets/internal/server"
	"github.com/openmined/remoteassets/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local instance with remote assets sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd.Flags(), map[string]string{
				"http.addr":         "http-addr",
				"http.cert":         "cert",
				"http.key":          "key",
				"scheduler.enabled": "schedule",
				"actions.workers":   "workers",
			})

			cfg := remoteConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			slog.Info("remoteassets", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			repo, err := openRepository("repository.path", "repository.db")
			if err != nil {
				return err
			}
			defer repo.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			manager := actions.NewManager(repo, cfg.ServiceUser, cfg.EventUserData, viper.GetInt("actions.workers"))
			svc, err := remoteassets.NewService(cfg, repo,
				remoteassets.WithActionManager(manager),
				remoteassets.WithMetrics(remoteassets.MustNewMetrics(reg)),
			)
			if err != nil {
				return err
			}

			job, err := remoteassets.NewJob(svc, viper.GetString("scheduler.expression"), filepath.Join(dataDir(), "sync.lock"))
			if err != nil {
				return err
			}

			srv, err := server.New(serverConfig(), &server.Services{
				Repository: repo,
				Remote:     svc,
				Job:        job,
				Actions:    manager,
				Gatherer:   reg,
				Schedule:   viper.GetBool("scheduler.enabled"),
			})
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("server start", "error", err)
				return err
			}
			return nil
		},
	}

	serveCmd.Flags().StringP("http-addr", "a", "", "Address to bind the local http server")
	serveCmd.Flags().String("cert", "", "Path to the TLS certificate file")
	serveCmd.Flags().String("key", "", "Path to the TLS key file")
	serveCmd.Flags().Bool("schedule", true, "Run the bulk sync on its cron schedule")
	serveCmd.Flags().IntP("workers", "w", actions.DefaultWorkers, "Background rendition sync workers")

	return serveCmd
}
