package main

import (
	"fmt"
	"path/filepath"

	"github.com/openmined/remoteassets/internal/remoteassets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sync [all|tags|assets]",
		Short:     "Run one bulk sync of tags and asset placeholders",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"all", "tags", "assets"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}

			cfg := remoteConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			repo, err := openRepository("repository.path", "repository.db")
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := remoteassets.NewService(cfg, repo)
			if err != nil {
				return err
			}
			job, err := remoteassets.NewJob(svc, viper.GetString("scheduler.expression"), filepath.Join(dataDir(), "sync.lock"))
			if err != nil {
				return err
			}

			result := &remoteassets.JobResult{}
			switch target {
			case "tags":
				result.Tags, err = job.SyncTags(cmd.Context())
			case "assets":
				result.Assets, err = job.SyncAssets(cmd.Context())
			default:
				result, err = job.SyncAll(cmd.Context())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "tags: %d, assets: %d\n", result.Tags, result.Assets)
			return err
		},
	}
}
