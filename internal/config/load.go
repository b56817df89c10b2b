package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	logx "iddaemon/pkg/logx"
)

// ErrMissingEnv is wrapped by Resolve when a required variable is not set.
var ErrMissingEnv = errors.New("required environment variable not set")

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads an optional .env file, the optional settings file at path
// (empty path skips it) and the process environment, and resolves them into
// a Config.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	st, err := ParseSettings(path)
	if err != nil {
		return nil, err
	}
	return Resolve(st, os.LookupEnv)
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables that are
// already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseSettings decodes the settings file strictly: unknown keys and
// trailing data are rejected. An empty path returns zero Settings.
func ParseSettings(path string) (Settings, error) {
	if strings.TrimSpace(path) == "" {
		return Settings{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return decodeSettings(path, b)
}

func decodeSettings(path string, b []byte) (Settings, error) {
	jb, err := toJSON(path, b)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}

	var st Settings
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&st); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Settings{}, fmt.Errorf("%s: invalid settings: trailing data", path)
		}
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// Resolve combines settings with the environment. ENVIRONMENT must be set
// (any value; only DevMode is special) and ADMIN_API_KEY must be non-empty.
func Resolve(st Settings, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	mode, ok := lookup(EnvMode)
	if !ok {
		return nil, fmt.Errorf("%s: %w", EnvMode, ErrMissingEnv)
	}
	key, ok := lookup(EnvAPIKey)
	if !ok || key == "" {
		return nil, fmt.Errorf("%s: %w", EnvAPIKey, ErrMissingEnv)
	}

	cfg := &Config{
		Environment: mode,
		BaseURL:     BaseURLFor(mode),
		APIKey:      key,
		Schedule:    firstNonEmpty(envValue(lookup, EnvSchedule), st.Schedule, DefaultSchedule),
		RatePerSec:  st.HTTP.RatePerSec,
		Logging: LoggingConfig{
			Level:   firstNonEmpty(envValue(lookup, EnvLogLevel), st.Logging.Level, "info"),
			Console: boolOr(st.Logging.Console, true),
			File:    st.Logging.File,
		},
		Systemd: SystemdConfig{
			Notify:   boolOr(st.Systemd.Notify, true),
			Watchdog: boolOr(st.Systemd.Watchdog, true),
		},
	}

	timeoutPath, timeoutRaw := "http.timeout", st.HTTP.Timeout
	if v := envValue(lookup, EnvHTTPTimeout); v != "" {
		timeoutPath, timeoutRaw = EnvHTTPTimeout, v
	}
	d, err := ParseDurationField(timeoutPath, timeoutRaw)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = d

	cfg.Location = time.Local
	if tz := firstNonEmpty(envValue(lookup, EnvTimezone), st.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone: invalid %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if cfg.RatePerSec < 0 {
		return nil, fmt.Errorf("http.rate_per_sec must be >= 0")
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		return nil, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		cfg.Logging.File.Path = DefaultLogPath
	}
	return cfg, nil
}

// BaseURLFor maps the mode indicator to the id-server base URL. Only an exact
// match on DevMode selects the local server.
func BaseURLFor(mode string) string {
	if mode == DevMode {
		return DevBaseURL
	}
	return ProdBaseURL
}

func envValue(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
