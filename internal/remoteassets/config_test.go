package remoteassets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   "https://author.example.com",
		Username: "sync",
		Password: "secret",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing server", func(c *Config) { c.Server = " " }, "server.url"},
		{"missing user", func(c *Config) { c.Username = "" }, "server.user"},
		{"missing password", func(c *Config) { c.Password = "" }, "server.pass"},
		{"malformed url", func(c *Config) { c.Server = "author.example.com" }, "server.url"},
		{"plain http", func(c *Config) { c.Server = "http://author.example.com" }, "server.url"},
		{"plain http allowed", func(c *Config) {
			c.Server = "http://author.example.com"
			c.AllowInsecure = true
		}, ""},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -1 }, "retry.delay"},
		{"negative save interval", func(c *Config) { c.SaveInterval = -5 }, "save.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := validConfig()
	c.DamSyncPaths = []string{"/content/dam/a", "", "  ", "/content/dam/b"}
	c.LazyRenditions = []string{"", "cq5dam.web.1280.1280.{extension}"}
	c.WhitelistedServiceUsers = []string{" renderer ", ""}
	require.NoError(t, c.Validate())

	assert.Equal(t, DefaultRetryDelay, c.RetryDelay)
	assert.Equal(t, 15*time.Minute, c.RetryDelayDuration())
	assert.Equal(t, DefaultSaveInterval, c.SaveInterval)
	assert.Equal(t, DefaultEventUserData, c.EventUserData)
	assert.Equal(t, DefaultServiceUser, c.ServiceUser)
	assert.Equal(t, []string{"/content/dam/a", "/content/dam/b"}, c.DamSyncPaths)
	assert.Equal(t, []string{"cq5dam.web.1280.1280.{extension}"}, c.LazyRenditions)

	assert.True(t, c.IsWhitelisted("renderer"))
	assert.False(t, c.IsWhitelisted("indexer"))

	assert.True(t, c.IsSyncPath("/content/dam/a/x.png"))
	assert.False(t, c.IsSyncPath("/content/dam/c/x.png"))
}

func TestConfig_RemoteURI(t *testing.T) {
	c := validConfig()
	c.Server = "https://author.example.com/"
	require.NoError(t, c.Validate())
	assert.Equal(t,
		"https://author.example.com/content/dam/my%20folder/a.png/_jcr_content/renditions/original",
		c.RemoteURI("/content/dam/my folder/a.png/jcr:content/renditions/original"))
}

func TestConfig_LogValueMasksPassword(t *testing.T) {
	c := validConfig()
	c.Password = "supersecret"
	assert.NotContains(t, c.LogValue().String(), "supersecret")
}
