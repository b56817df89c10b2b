package config

import (
	"time"

	logx "iddaemon/pkg/logx"
)

// Environment variable names.
const (
	EnvMode        = "ENVIRONMENT"
	EnvAPIKey      = "ADMIN_API_KEY"
	EnvLogLevel    = "LOG_LEVEL"
	EnvSchedule    = "SCHEDULE"
	EnvHTTPTimeout = "HTTP_TIMEOUT"
	EnvTimezone    = "SCHEDULE_TZ"
)

// DevMode is the ENVIRONMENT value that selects the local id-server.
const DevMode = "dev"

const (
	DevBaseURL  = "http://localhost:3000"
	ProdBaseURL = "https://id-server.holonym.io"
)

const (
	DefaultSchedule   = "10m"
	DefaultRatePerSec = 1.0
	DefaultLogPath    = logx.DefaultFilePath
)

// Settings is the optional settings file (-config). Secrets never live here;
// the API key is always taken from the environment.
//
// Example (YAML):
//
//	schedule: "10m"
//	http:
//	  timeout: "30s"
//	logging:
//	  level: debug
//	  file: { enabled: true, path: ./iddaemon.log }
type Settings struct {
	Schedule string          `json:"schedule,omitempty"`
	Timezone string          `json:"timezone,omitempty"`
	HTTP     HTTPSettings    `json:"http"`
	Logging  LoggingSettings `json:"logging"`
	Systemd  SystemdSettings `json:"systemd"`
}

type HTTPSettings struct {
	// Timeout is a Go duration string. "0s" (or omitted) means no client
	// timeout; requests still end when the daemon shuts down.
	Timeout string `json:"timeout,omitempty"`
	// RatePerSec caps outbound admin calls. Omitted means DefaultRatePerSec.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type LoggingSettings struct {
	Level string `json:"level,omitempty"`
	// Console is a pointer so an explicit false can be told apart from omitted.
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type SystemdSettings struct {
	Notify   *bool `json:"notify,omitempty"`
	Watchdog *bool `json:"watchdog,omitempty"`
}

// Config is the resolved, immutable process configuration. It is built once
// at startup and passed explicitly to everything that needs it.
type Config struct {
	Environment string
	BaseURL     string
	APIKey      string

	Schedule string
	// Location is the zone cron schedules are evaluated in. Intervals ignore it.
	Location    *time.Location
	HTTPTimeout time.Duration
	RatePerSec  float64

	Logging LoggingConfig
	Systemd SystemdConfig
}

type LoggingConfig struct {
	Level   string
	Console bool
	File    LoggingFile
}

type SystemdConfig struct {
	Notify   bool
	Watchdog bool
}
