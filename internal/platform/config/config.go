// Package config loads service configuration from YAML and the environment.
package config

import "time"

// Config is the root configuration for the intake server and the terminal form.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Intake   IntakeConfig   `yaml:"intake"`
	VisaAPI  VisaAPIConfig  `yaml:"visa_api"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"SERVER_REQUEST_TIMEOUT"  env-default:"45s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// IntakeConfig tunes the form engine.
type IntakeConfig struct {
	MaxFileSize    int64         `yaml:"max_file_size"    env:"INTAKE_MAX_FILE_SIZE"    env-default:"5242880"`
	Debounce       time.Duration `yaml:"debounce"         env:"INTAKE_DEBOUNCE"         env-default:"300ms"`
	ResetOnSuccess bool          `yaml:"reset_on_success" env:"INTAKE_RESET_ON_SUCCESS" env-default:"true"`
	PolicyFile     string        `yaml:"policy_file"      env:"INTAKE_POLICY_FILE"`
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl" env:"INTAKE_SESSION_IDLE_TTL" env-default:"30m"`
	SweepInterval  time.Duration `yaml:"sweep_interval"   env:"INTAKE_SWEEP_INTERVAL"   env-default:"1m"`
	SubmitLockTTL  time.Duration `yaml:"submit_lock_ttl"  env:"INTAKE_SUBMIT_LOCK_TTL"  env-default:"2m"`
}

// VisaAPIConfig points at the backend that stores applications.
type VisaAPIConfig struct {
	BaseURL          string        `yaml:"base_url"          env:"VISA_API_BASE_URL"          env-default:"http://localhost:4000/api"`
	Timeout          time.Duration `yaml:"timeout"           env:"VISA_API_TIMEOUT"           env-default:"30s"`
	FailureThreshold int           `yaml:"failure_threshold" env:"VISA_API_FAILURE_THRESHOLD" env-default:"5"`
	SuccessThreshold int           `yaml:"success_threshold" env:"VISA_API_SUCCESS_THRESHOLD" env-default:"2"`
	Cooldown         time.Duration `yaml:"cooldown"          env:"VISA_API_COOLDOWN"          env-default:"15s"`
}

// RedisConfig configures the submission lock store. An empty URL keeps locks in memory.
type RedisConfig struct {
	URL          string        `yaml:"url"            env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"      env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout"   env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
}

// DatabaseConfig configures the receipt store. An empty DSN keeps receipts in memory.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// KafkaConfig configures submission events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"            env:"KAFKA_BROKERS"            env-separator:","`
	Topic             string   `yaml:"topic"              env:"KAFKA_TOPIC"              env-default:"visa.application.submitted"`
	Partitions        int32    `yaml:"partitions"         env:"KAFKA_PARTITIONS"         env-default:"3"`
	ReplicationFactor int16    `yaml:"replication_factor" env:"KAFKA_REPLICATION_FACTOR" env-default:"1"`
	// DeliveryTimeout bounds how long one record is retried before it fails.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"KAFKA_DELIVERY_TIMEOUT" env-default:"10s"`
}
