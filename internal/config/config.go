// Package config loads the service configuration. Values come from, in
// increasing priority: built-in defaults, a JSON file, the environment
// (optionally seeded from a .env file) and command-line flags.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Commands understood by the rango binary.
const (
	CommandServe    = "serve"
	CommandPopulate = "populate"
)

// Policy switches between the open and the guarded variant of the site.
type Policy struct {
	// RequireAuthForMutation guards the add category and add page forms.
	RequireAuthForMutation bool

	// TrackViewCounts shows view counters and the most viewed pages.
	TrackViewCounts bool
}

// Config holds every setting of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DatabaseDriver      string        `env:"DATABASE_DRIVER" json:"database_driver" validate:"oneof=pgx postgres"`
	SQLitePath          string        `env:"SQLITE_PATH" json:"sqlite_path" validate:"filepath"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"-"`

	SessionCookieName       string        `env:"SESSION_COOKIE_NAME" json:"session_cookie_name" validate:"required"`
	SessionSigningSecretKey string        `env:"SESSION_SIGNING_SECRET_KEY" json:"session_signing_secret_key" validate:"omitempty,base64url"`
	SessionMaxAge           time.Duration `env:"SESSION_MAX_AGE" json:"-" validate:"gt=0"`

	MediaDir               string `env:"MEDIA_DIR" json:"media_dir" validate:"required"`
	RequireAuthForMutation bool   `env:"REQUIRE_AUTH_FOR_MUTATION" json:"require_auth_for_mutation"`
	TrackViewCounts        bool   `env:"TRACK_VIEW_COUNTS" json:"track_view_counts"`
	TopListSize            int    `env:"TOP_LIST_SIZE" json:"top_list_size" validate:"min=1"`

	TrustedSubnet string `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	GRPCAddr      string `env:"GRPC_ADDRESS" json:"grpc_address" validate:"omitempty,hostname_port"`

	// SessionKeyGenerated is set when no signing key was configured and a
	// random one was made for this process. Sessions do not survive a restart then.
	SessionKeyGenerated bool `json:"-"`

	// Command is the first positional argument, "serve" when absent.
	Command string `json:"-" validate:"oneof=serve populate"`
}

// durations holds the duration settings of the JSON file, written as
// strings such as "10s".
type durations struct {
	DBConnectionTimeout string `json:"db_connection_timeout"`
	SessionMaxAge       string `json:"session_max_age"`
}

var defaultConfig = Config{
	RunAddr:                 ":8080",
	LogLevel:                "info",
	DatabaseDriver:          "pgx",
	DBConnectionTimeout:     10 * time.Second,
	SessionCookieName:       "sessionid",
	SessionMaxAge:           14 * 24 * time.Hour,
	MediaDir:                "media",
	RequireAuthForMutation:  true,
	TrackViewCounts:         true,
	TopListSize:             5,
	Command:                 CommandServe,
}

// Policy returns the site variant selected by the configuration.
func (c *Config) Policy() Policy {
	return Policy{
		RequireAuthForMutation: c.RequireAuthForMutation,
		TrackViewCounts:        c.TrackViewCounts,
	}
}

// SessionKey decodes the session signing key.
func (c *Config) SessionKey() ([]byte, error) {
	return base64.URLEncoding.DecodeString(c.SessionSigningSecretKey)
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

const generatedSessionKeySize = 32

func (c *Config) ensureSessionKey() error {
	if c.SessionSigningSecretKey != "" {
		return nil
	}

	key := make([]byte, generatedSessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("in internal/config/config.go/ensureSessionKey(): error while `rand.Read()` calling: %w", err)
	}
	c.SessionSigningSecretKey = base64.URLEncoding.EncodeToString(key)
	c.SessionKeyGenerated = true

	return nil
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

func (c *Config) loadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	var fileDurations durations
	if err := json.Unmarshal(data, &fileDurations); err != nil {
		return err
	}
	if fileDurations.DBConnectionTimeout != "" {
		if c.DBConnectionTimeout, err = time.ParseDuration(fileDurations.DBConnectionTimeout); err != nil {
			return err
		}
	}
	if fileDurations.SessionMaxAge != "" {
		if c.SessionMaxAge, err = time.ParseDuration(fileDurations.SessionMaxAge); err != nil {
			return err
		}
	}

	return nil
}

func newFlagSet(values *Config, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.StringVar(configPath, "c", *configPath, "path to the JSON configuration file")
	fs.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
	fs.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
	fs.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "PostgreSQL connection string")
	fs.StringVar(&values.SQLitePath, "s", values.SQLitePath, "SQLite database file")
	fs.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
	fs.StringVar(&values.MediaDir, "m", values.MediaDir, "directory for uploaded files")
	fs.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "CIDR allowed to read internal stats")
	fs.StringVar(&values.GRPCAddr, "g", values.GRPCAddr, "address and port of the gRPC server")

	return fs
}

// InitOption configures New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing makes New ignore the command line. Tests use it.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configPath := os.Getenv("CONFIG")
	if !options.disableFlagsParsing {
		firstPass := defaultConfig
		if err := newFlagSet(&firstPass, &configPath).Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		if err := values.loadJSON(configPath); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(values); err != nil {
		return nil, err
	}

	if !options.disableFlagsParsing {
		fs := newFlagSet(values, &configPath)
		if err := fs.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
		if fs.NArg() > 0 {
			values.Command = fs.Arg(0)
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	if err := values.ensureSessionKey(); err != nil {
		return nil, err
	}

	return values, nil
}
