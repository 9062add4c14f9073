package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ota-serve/ota"
	"ota-serve/pkg/logger"
	"ota-serve/utils"
)

// EnvPrefix is prepended to environment overrides, e.g. OTA_PORT.
const EnvPrefix = "OTA"

// Config holds everything decided at startup. It is built once and passed
// by value afterwards.
type Config struct {
	Artifact  string        `mapstructure:"artifact"`
	Header    string        `mapstructure:"header"`
	Marker    string        `mapstructure:"marker"`
	Host      string        `mapstructure:"host"`
	Interface string        `mapstructure:"iface"`
	Port      int           `mapstructure:"port"`
	Checksum  string        `mapstructure:"checksum"`
	TFTPAddr  string        `mapstructure:"tftp_addr"`
	Logging   logger.Config `mapstructure:"logging"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"header":     "header",
	"marker":     "marker",
	"host":       "host",
	"iface":      "iface",
	"port":       "port",
	"checksum":   "checksum",
	"tftp-addr":  "tftp_addr",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"log-file":   "logging.file",
}

// RegisterFlags adds the command line flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("header", ota.DefaultHeader, "header file holding the firmware version")
	fs.String("marker", ota.DefaultMarker, "text identifying the version line in the header")
	fs.String("host", "", "IPv4 address to advertise (default: address of the default route)")
	fs.String("iface", "", "advertise the first IPv4 address of this interface")
	fs.Int("port", ota.DefaultPort, "HTTP port")
	fs.String("checksum", ota.DefaultChecksum, "checksum algorithm: "+strings.Join(ota.ChecksumNames(), ", "))
	fs.String("tftp-addr", "", "also serve over TFTP on this address, e.g. :69")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "text", "log format: text or json")
	fs.String("log-file", "", "also write logs to this file (rotated)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("header", ota.DefaultHeader)
	v.SetDefault("marker", ota.DefaultMarker)
	v.SetDefault("port", ota.DefaultPort)
	v.SetDefault("checksum", ota.DefaultChecksum)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", false)
}

// Load merges defaults, the optional config file, OTA_* environment
// variables and flags, in increasing order of precedence. artifact is the
// positional command line argument and always wins.
func Load(path string, flags *pflag.FlagSet, artifact string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}
	if artifact != "" {
		v.Set("artifact", artifact)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.absolute()
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Artifact == "" {
		result = multierror.Append(result, errors.New("firmware artifact path is required"))
	}
	if c.Header == "" {
		result = multierror.Append(result, errors.New("header path is required"))
	}
	if c.Marker == "" {
		result = multierror.Append(result, errors.New("version marker must not be empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Host != "" && net.ParseIP(c.Host).To4() == nil {
		result = multierror.Append(result, fmt.Errorf("host %q is not an IPv4 address", c.Host))
	}
	if _, err := ota.NewChecksum(c.Checksum); err != nil {
		result = multierror.Append(result, err)
	}
	if c.TFTPAddr != "" {
		if _, err := utils.ParsePort(c.TFTPAddr); err != nil {
			result = multierror.Append(result, fmt.Errorf("tftp address: %w", err))
		}
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}

	return result.ErrorOrNil()
}

func (c Config) absolute() (Config, error) {
	var err error
	if c.Artifact, err = filepath.Abs(c.Artifact); err != nil {
		return Config{}, err
	}
	if c.Header, err = filepath.Abs(c.Header); err != nil {
		return Config{}, err
	}
	return c, nil
}
