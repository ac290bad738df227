package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks ranges that env-default tags cannot express.
func (c *Config) Validate() error {
	if c.Intake.MaxFileSize <= 0 {
		return fmt.Errorf("intake.max_file_size must be > 0 (got %d)", c.Intake.MaxFileSize)
	}
	if c.Intake.Debounce < 0 {
		return fmt.Errorf("intake.debounce must be >= 0 (got %s)", c.Intake.Debounce)
	}
	if c.Intake.SessionIdleTTL <= 0 {
		return fmt.Errorf("intake.session_idle_ttl must be > 0 (got %s)", c.Intake.SessionIdleTTL)
	}
	if c.Intake.SubmitLockTTL <= 0 {
		return fmt.Errorf("intake.submit_lock_ttl must be > 0 (got %s)", c.Intake.SubmitLockTTL)
	}

	u, err := url.Parse(c.VisaAPI.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("visa_api.base_url must be an absolute URL (got %q)", c.VisaAPI.BaseURL)
	}
	if c.VisaAPI.FailureThreshold <= 0 || c.VisaAPI.SuccessThreshold <= 0 {
		return fmt.Errorf("visa_api breaker thresholds must be > 0")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}

	return nil
}
