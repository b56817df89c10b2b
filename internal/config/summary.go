package config

import (
	logx "iddaemon/pkg/logx"
)

// LogFields returns a safe structured view of cfg for the startup line.
// The API key is never included, only whether it is set and its length.
func LogFields(cfg *Config) []logx.Field {
	if cfg == nil {
		return nil
	}
	return []logx.Field{
		logx.String("environment", cfg.Environment),
		logx.String("base_url", cfg.BaseURL),
		logx.Bool("api_key_set", cfg.APIKey != ""),
		logx.Int("api_key_len", len(cfg.APIKey)),
		logx.String("schedule", cfg.Schedule),
		logx.String("timezone", cfg.Location.String()),
		logx.Duration("http_timeout", cfg.HTTPTimeout),
		logx.Any("rate_per_sec", cfg.RatePerSec),
		logx.String("log_level", cfg.Logging.Level),
		logx.Bool("log_file", cfg.Logging.File.Enabled),
		logx.Bool("systemd_notify", cfg.Systemd.Notify),
	}
}
