package conf

import (
	"errors"
	"flag"
	"strings"

	"github.com/spf13/viper"
)

var configDir = flag.String("config", ".", "directory containing the configuration file")

type Option func(*conf)

type conf struct {
	configFileType string
	configFilename string
	envPrefix      string
	required       bool
}

func defaults() *conf {
	return &conf{
		configFileType: "yaml",
		configFilename: "config",
		envPrefix:      "inkwell",
	}
}

func apply(opts ...Option) *conf {
	newConf := defaults()
	for _, opt := range opts {
		opt(newConf)
	}
	return newConf
}

func WithFileType(fileType string) Option {
	return func(c *conf) {
		c.configFileType = fileType
	}
}

func WithFileName(filename string) Option {
	return func(c *conf) {
		c.configFilename = filename
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(c *conf) {
		c.envPrefix = prefix
	}
}

// WithRequiredFile makes a missing configuration file an error.
func WithRequiredFile() Option {
	return func(c *conf) {
		c.required = true
	}
}

// Init loads the configuration file from the -config directory into the global
// viper instance and enables environment overrides. Nested keys map to
// environment variables with "." replaced by "_", e.g. INKWELL_CONTENT_ROOT.
func Init(opts ...Option) error {
	cur := apply(opts...)
	viper.SetConfigType(cur.configFileType)
	viper.AddConfigPath(*configDir)
	viper.SetConfigName(cur.configFilename)
	viper.SetEnvPrefix(cur.envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && !cur.required {
			return nil
		}
		return err
	}
	return nil
}
