package remoteassets

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/utils"
)

const (
	DefaultRetryDelay    = 15
	DefaultSaveInterval  = 100
	DefaultEventUserData = "changedByWorkflowProcess"
	DefaultServiceUser   = "remote-assets-sync"
)

// ConfigError is an invalid configuration. It keeps the feature from starting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("remote assets config: %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a configuration error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

type Config struct {
	Server        string
	Username      string
	Password      string
	AllowInsecure bool

	TagSyncPaths    []string
	DamSyncPaths    []string
	EagerRenditions []string
	// LazyRenditions may contain {extension}, replaced by the asset's file extension
	LazyRenditions []string

	// RetryDelay is the quiet period after a failed sync, in minutes
	RetryDelay   int
	SaveInterval int

	EventUserData           string
	WhitelistedServiceUsers []string
	// ServiceUser is the system identity every sync runs as
	ServiceUser string

	whitelisted mapset.Set[string]
}

// Validate normalizes the config and checks it. Blank list entries are dropped and
// unset numbers get their defaults.
func (c *Config) Validate() error {
	c.Server = strings.TrimSpace(c.Server)
	if c.Server == "" {
		return &ConfigError{Field: "server.url", Reason: "remote server must be specified"}
	}
	if strings.TrimSpace(c.Username) == "" {
		return &ConfigError{Field: "server.user", Reason: "remote server username must be specified"}
	}
	if strings.TrimSpace(c.Password) == "" {
		return &ConfigError{Field: "server.pass", Reason: "remote server password must be specified"}
	}

	u, err := url.Parse(c.Server)
	if err != nil || !utils.IsValidURL(c.Server) {
		return &ConfigError{Field: "server.url", Reason: "remote server address is malformed"}
	}
	if !strings.EqualFold(u.Scheme, "https") {
		if !c.AllowInsecure {
			return &ConfigError{
				Field:  "server.url",
				Reason: "remote server address must be https so that credentials cannot be compromised; set server.insecure to allow plain http at your own risk",
			}
		}
		slog.Warn("remote assets connection is not https, credentials are sent in CLEAR TEXT", "server", c.Server)
	}

	switch {
	case c.RetryDelay == 0:
		c.RetryDelay = DefaultRetryDelay
	case c.RetryDelay < 1:
		return &ConfigError{Field: "retry.delay", Reason: "must be at least 1 minute"}
	}
	switch {
	case c.SaveInterval == 0:
		c.SaveInterval = DefaultSaveInterval
	case c.SaveInterval < 1:
		return &ConfigError{Field: "save.interval", Reason: "must be at least 1"}
	}
	if c.ServiceUser == "" {
		c.ServiceUser = DefaultServiceUser
	}
	if c.EventUserData == "" {
		c.EventUserData = DefaultEventUserData
	}

	c.TagSyncPaths = compact(c.TagSyncPaths)
	c.DamSyncPaths = compact(c.DamSyncPaths)
	c.EagerRenditions = compact(c.EagerRenditions)
	c.LazyRenditions = compact(c.LazyRenditions)
	c.WhitelistedServiceUsers = compact(c.WhitelistedServiceUsers)
	c.whitelisted = mapset.NewSet(c.WhitelistedServiceUsers...)

	return nil
}

func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Minute
}

// IsWhitelisted reports whether a service user may trigger binary syncs
func (c *Config) IsWhitelisted(userID string) bool {
	if c.whitelisted == nil {
		return false
	}
	return c.whitelisted.Contains(userID)
}

// IsSyncPath reports whether p starts with one of the DAM sync paths
func (c *Config) IsSyncPath(p string) bool {
	for _, prefix := range c.DamSyncPaths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// RemoteURI is where the remote server serves the repository path p
func (c *Config) RemoteURI(p string) string {
	return strings.TrimSuffix(c.Server, "/") + packmgr.RemotePath(p)
}

// NewClient returns a package manager client that authenticates preemptively.
func (c *Config) NewClient(opts ...packmgr.ClientOption) *packmgr.Client {
	return packmgr.NewClient(c.Server, c.Username, c.Password, opts...)
}

// LogValue keeps the password out of logs
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("server", c.Server),
		slog.String("user", c.Username),
		slog.String("pass", utils.MaskSecret(c.Password)),
		slog.Bool("insecure", c.AllowInsecure),
		slog.Any("tagPaths", c.TagSyncPaths),
		slog.Any("damPaths", c.DamSyncPaths),
		slog.Any("eager", c.EagerRenditions),
		slog.Any("lazy", c.LazyRenditions),
		slog.Int("retryDelay", c.RetryDelay),
		slog.Int("saveInterval", c.SaveInterval),
	)
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
