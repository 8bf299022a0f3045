package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/vidtube/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 10 * 24 * time.Hour
	defaultS3Region     = "us-east-1"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the vidtube service will be run
	ListenAddr string

	// Database to connect to
	// Users are kept in memory if empty
	DatabaseDSN string

	// Independent keys to sign access and refresh tokens
	AccessSecret  string
	RefreshSecret string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Environment
	Environment string

	// Send auth cookies over https only
	SecureCookies bool

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,
		S3Region:    defaultS3Region,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := parseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"ACCESS_TOKEN_SECRET":  setString(&c.AccessSecret),
		"REFRESH_TOKEN_SECRET": setString(&c.RefreshSecret),
		"ACCESS_TOKEN_EXPIRY":  setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_EXPIRY": setDuration(&c.RefreshTTL),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
		"SECURE_COOKIES":       setBool(&c.SecureCookies),
		"S3_ENDPOINT":          setString(&c.S3Endpoint),
		"S3_REGION":            setString(&c.S3Region),
		"S3_BUCKET":            setString(&c.S3Bucket),
		"S3_ACCESS_KEY":        setString(&c.S3AccessKey),
		"S3_SECRET_KEY":        setString(&c.S3SecretKey),
		"S3_PUBLIC_URL":        setString(&c.S3PublicURL),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("vidtube", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string, in-memory store if empty")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token signing key")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token signing key")
	fs.Var((*durationValue)(&c.AccessTTL), "access-expiry", "Access token lifetime (e.g. 15m, 1d)")
	fs.Var((*durationValue)(&c.RefreshTTL), "refresh-expiry", "Refresh token lifetime (e.g. 240h, 10d)")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.BoolVar(&c.SecureCookies, "secure-cookies", c.SecureCookies, "Send auth cookies over https only")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3 compatible endpoint, AWS if empty")
	fs.StringVar(&c.S3Region, "s3-region", c.S3Region, "S3 region")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "Bucket for uploaded images")
	fs.StringVar(&c.S3AccessKey, "s3-access-key", c.S3AccessKey, "S3 access key")
	fs.StringVar(&c.S3SecretKey, "s3-secret-key", c.S3SecretKey, "S3 secret key")
	fs.StringVar(&c.S3PublicURL, "s3-public-url", c.S3PublicURL, "Base URL of uploaded images")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	var errs []error
	if c.AccessSecret == "" {
		errs = append(errs, errors.New("access token secret is required"))
	}
	if c.RefreshSecret == "" {
		errs = append(errs, errors.New("refresh token secret is required"))
	}
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token expiry must be positive"))
	}
	if c.S3Bucket == "" {
		errs = append(errs, errors.New("s3 bucket is required"))
	}
	return errors.Join(errs...)
}

// Parse Go duration, also accepts whole days like '10d'
func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// pflag value for durations with day suffix
type durationValue time.Duration

func (d *durationValue) Set(s string) error {
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = durationValue(v)
	return nil
}

func (d *durationValue) String() string {
	return time.Duration(*d).String()
}

func (d *durationValue) Type() string {
	return "duration"
}
