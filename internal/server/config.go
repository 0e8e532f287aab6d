package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:4502"
	DefaultSyncRate  = "6-M"
	DefaultRateLimit = "100-S"
)

type Config struct {
	HTTP HTTPConfig
}

type HTTPConfig struct {
	Addr     string
	CertFile string
	KeyFile  string
	// Users maps user name to password. When empty any basic auth name is trusted.
	Users map[string]string
	// SyncRate limits the management sync endpoints, in limiter format ("6-M")
	SyncRate string
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.HTTP.SyncRate == "" {
		c.HTTP.SyncRate = DefaultSyncRate
	}
	if _, err := limiter.NewRateFromFormatted(c.HTTP.SyncRate); err != nil {
		return fmt.Errorf("http.sync_rate: %w", err)
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("http.cert and http.key must be set together")
	}
	return nil
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *HTTPConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.Bool("tls", c.TLSEnabled()),
		slog.Int("users", len(c.Users)),
		slog.String("syncRate", c.SyncRate),
	)
}
