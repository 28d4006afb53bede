package env

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLiters   = 1
	DefaultCups     = 10
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 1821
	DefaultHTTPPort = "1822"
	DefaultLogLevel = "info"

	// MaxLiters keeps the water counter, kept in ml, within an int
	MaxLiters = math.MaxInt / 1000
)

var (
	ErrInvalidLiters = errors.New("the coffee machine needs between 1 and MaxLiters liters at the start")
	ErrInvalidCups   = errors.New("there need to be at least 1 cup slot in the coffee machine at the start")
	ErrInvalidPort   = errors.New("port must be between 1 and 65535")
)

type Config struct {
	// Starting water in liters
	Liters int `yaml:"liters" env:"BREWD_LITERS"`

	// Starting room in the cup bin
	Cups int `yaml:"cups" env:"BREWD_CUPS"`

	Host      string `yaml:"host" env:"BREWD_HOST"`
	Port      int    `yaml:"port" env:"BREWD_PORT"`
	Listeners int    `yaml:"listeners" env:"BREWD_LISTENERS"`

	// HTTPPort serves the status API, "0" disables it
	HTTPPort  string `yaml:"http_port" env:"BREWD_HTTP_PORT"`
	DebugHTTP bool   `yaml:"debug_http" env:"BREWD_DEBUG_HTTP"`

	// Journal is the SQLite file decisions are recorded in, empty disables it
	Journal string `yaml:"journal" env:"BREWD_JOURNAL"`

	// AcceptRate is new connections per second per listener, 0 is unlimited
	AcceptRate  float64       `yaml:"accept_rate" env:"BREWD_ACCEPT_RATE"`
	AcceptBurst int           `yaml:"accept_burst" env:"BREWD_ACCEPT_BURST"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"BREWD_READ_TIMEOUT"`

	LogLevel string `yaml:"log_level" env:"BREWD_LOG_LEVEL"`
}

// LoadConfig layers the optional YAML file named by BREWD_CONFIG, then
// .env.local, then the environment, then defaults for anything still unset.
func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if path := os.Getenv("BREWD_CONFIG"); path != "" {
		if err := loadFile(path, &config); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env.local: %w", err)
		}
	}

	// Processed separately so the environment wins over the file no matter
	// how envconfig treats fields that are already set.
	fromEnv := Config{}
	if err := envconfig.Process(ctx, &fromEnv); err != nil {
		return nil, err
	}

	config.merge(fromEnv)
	config.applyDefaults()

	return &config, nil
}

func loadFile(path string, config *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(config); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return nil
}

// merge copies every field that is set in o over c.
func (c *Config) merge(o Config) {
	if o.Liters != 0 {
		c.Liters = o.Liters
	}

	if o.Cups != 0 {
		c.Cups = o.Cups
	}

	if o.Host != "" {
		c.Host = o.Host
	}

	if o.Port != 0 {
		c.Port = o.Port
	}

	if o.Listeners != 0 {
		c.Listeners = o.Listeners
	}

	if o.HTTPPort != "" {
		c.HTTPPort = o.HTTPPort
	}

	if o.DebugHTTP {
		c.DebugHTTP = true
	}

	if o.Journal != "" {
		c.Journal = o.Journal
	}

	if o.AcceptRate != 0 {
		c.AcceptRate = o.AcceptRate
	}

	if o.AcceptBurst != 0 {
		c.AcceptBurst = o.AcceptBurst
	}

	if o.ReadTimeout != 0 {
		c.ReadTimeout = o.ReadTimeout
	}

	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

func (c *Config) applyDefaults() {
	if c.Liters == 0 {
		c.Liters = DefaultLiters
	}

	if c.Cups == 0 {
		c.Cups = DefaultCups
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}

	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.HTTPPort == "" {
		c.HTTPPort = DefaultHTTPPort
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// HTTPEnabled reports whether the status API should be served.
func (c *Config) HTTPEnabled() bool {
	return c.HTTPPort != "0"
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() (err error) {
	if c.Liters < 1 || c.Liters > MaxLiters {
		err = multierr.Append(err, fmt.Errorf("liters %d: %w", c.Liters, ErrInvalidLiters))
	}

	if c.Cups < 1 {
		err = multierr.Append(err, fmt.Errorf("cups %d: %w", c.Cups, ErrInvalidCups))
	}

	if c.Port < 1 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d: %w", c.Port, ErrInvalidPort))
	}

	if c.AcceptRate < 0 {
		err = multierr.Append(err, fmt.Errorf("accept rate %v must not be negative", c.AcceptRate))
	}

	return err
}
