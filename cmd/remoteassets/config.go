package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/openmined/remoteassets/internal/datastore"
	"github.com/openmined/remoteassets/internal/remoteassets"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/openmined/remoteassets/internal/server"
	"github.com/openmined/remoteassets/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	home, _        = os.UserHomeDir()
	defaultDataDir = filepath.Join(home, ".remoteassets")
	configFileName = "config"
	envPrefix      = "REMOTEASSETS"
)

func setDefaults() {
	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("retry.delay", remoteassets.DefaultRetryDelay)
	viper.SetDefault("save.interval", remoteassets.DefaultSaveInterval)
	viper.SetDefault("event.user.data", remoteassets.DefaultEventUserData)
	viper.SetDefault("scheduler.expression", remoteassets.DefaultSchedule)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("http.addr", server.DefaultAddr)
	viper.SetDefault("http.sync_rate", server.DefaultSyncRate)
	viper.SetDefault("datastore.type", datastore.TypeInline)
}

func loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	setDefaults()

	if configFilePath, _ := cmd.Flags().GetString("config"); configFilePath != "" {
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(defaultDataDir)
		viper.AddConfigPath(filepath.Join(home, ".config", "remoteassets"))
		viper.SetConfigName(configFileName)
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return nil
}

// bindFlags binds command flags to config keys
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if f := flags.Lookup(flag); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

func dataDir() string {
	dir, err := utils.ResolvePath(viper.GetString("data_dir"))
	if err != nil {
		return viper.GetString("data_dir")
	}
	return dir
}

func remoteConfig() *remoteassets.Config {
	return &remoteassets.Config{
		Server:                  viper.GetString("server.url"),
		Username:                viper.GetString("server.user"),
		Password:                viper.GetString("server.pass"),
		AllowInsecure:           viper.GetBool("server.insecure"),
		TagSyncPaths:            viper.GetStringSlice("tag.paths"),
		DamSyncPaths:            viper.GetStringSlice("dam.paths"),
		EagerRenditions:         viper.GetStringSlice("dam.renditions.eager"),
		LazyRenditions:          viper.GetStringSlice("dam.renditions.lazy"),
		RetryDelay:              viper.GetInt("retry.delay"),
		SaveInterval:            viper.GetInt("save.interval"),
		EventUserData:           viper.GetString("event.user.data"),
		WhitelistedServiceUsers: viper.GetStringSlice("whitelisted.service.users"),
	}
}

func serverConfig() *server.Config {
	return &server.Config{
		HTTP: server.HTTPConfig{
			Addr:     viper.GetString("http.addr"),
			CertFile: viper.GetString("http.cert"),
			KeyFile:  viper.GetString("http.key"),
			Users:    viper.GetStringMapString("http.users"),
			SyncRate: viper.GetString("http.sync_rate"),
		},
	}
}

// openRepository opens the repository at key, relative paths resolve in the data dir
func openRepository(key, fallback string, opts ...repository.Option) (*repository.Repository, error) {
	path := viper.GetString(key)
	if path == "" {
		path = fallback
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir(), path)
	}

	var dsCfg datastore.Config
	if err := viper.UnmarshalKey("datastore", &dsCfg); err != nil {
		return nil, fmt.Errorf("datastore config: %w", err)
	}
	// the inline store lives in the repository database and is the repository default
	if dsCfg.Type != "" && dsCfg.Type != datastore.TypeInline {
		store, err := datastore.New(&dsCfg, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, repository.WithStore(store))
	}

	return repository.Open(path, opts...)
}
