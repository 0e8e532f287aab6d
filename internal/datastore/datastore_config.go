package datastore

import (
	"fmt"

	"github.com/openmined/remoteassets/internal/utils"
)

const (
	TypeInline = "inline"
	TypeS3     = "s3"
)

type Config struct {
	Type string    `mapstructure:"type"`
	S3   *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	BucketName string `mapstructure:"bucket_name"`
	Prefix     string `mapstructure:"prefix"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
}

func (c *Config) Validate() error {
	switch c.Type {
	case "", TypeInline:
		return nil
	case TypeS3:
		if c.S3 == nil {
			return fmt.Errorf("datastore.s3 required")
		}
		return c.S3.Validate()
	default:
		return fmt.Errorf("unknown datastore type %q", c.Type)
	}
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}
