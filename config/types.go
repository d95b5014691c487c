package config

import "time"

type AppConfig struct {
	DBDriver      string              `yaml:"db_driver" env:"COMPLAINTDESK_DB_DRIVER" env-default:"sqlite"`
	DBURL         string              `yaml:"db_url" env:"COMPLAINTDESK_DB_URL" env-default:"data/complaintdesk.db"`
	ListenAddr    string              `yaml:"listen_addr" env:"COMPLAINTDESK_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv        string              `yaml:"app_env" env:"COMPLAINTDESK_APP_ENV"`
	Log           LogConfig           `yaml:"log"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Auth          AuthConfig          `yaml:"auth"`
	Complaints    ComplaintsConfig    `yaml:"complaints"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Backups       BackupsConfig       `yaml:"backups"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"COMPLAINTDESK_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"COMPLAINTDESK_LOG_FORMAT" env-default:"text"`
}

type DirectoryConfig struct {
	// Path to a YAML people file. Empty means the embedded demo directory.
	Path       string `yaml:"path" env:"COMPLAINTDESK_DIRECTORY_PATH"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"COMPLAINTDESK_DIRECTORY_BCRYPT_COST" env-default:"10"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"COMPLAINTDESK_JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"COMPLAINTDESK_JWT_ISSUER" env-default:"complaintdesk"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"COMPLAINTDESK_TOKEN_TTL" env-default:"3h"`
}

type ComplaintsConfig struct {
	IDFormat string `yaml:"id_format" env:"COMPLAINTDESK_COMPLAINTS_ID_FORMAT" env-default:"c{seq}"`
	SeedDemo bool   `yaml:"seed_demo" env:"COMPLAINTDESK_COMPLAINTS_SEED_DEMO" env-default:"true"`
}

type NotificationsConfig struct {
	Sink         string        `yaml:"sink" env:"COMPLAINTDESK_NOTIFY_SINK" env-default:"log"`
	Schedule     string        `yaml:"schedule" env:"COMPLAINTDESK_NOTIFY_SCHEDULE" env-default:"@every 15s"`
	BatchSize    int           `yaml:"batch_size" env:"COMPLAINTDESK_NOTIFY_BATCH_SIZE" env-default:"50"`
	MaxAttempts  int           `yaml:"max_attempts" env:"COMPLAINTDESK_NOTIFY_MAX_ATTEMPTS" env-default:"5"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"COMPLAINTDESK_NOTIFY_RETRY_BACKOFF" env-default:"30s"`
	Redis        RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"COMPLAINTDESK_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"COMPLAINTDESK_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"COMPLAINTDESK_REDIS_DB" env-default:"0"`
	Channel  string `yaml:"channel" env:"COMPLAINTDESK_REDIS_CHANNEL" env-default:"complaintdesk.notifications"`
}

type BackupsConfig struct {
	Enabled  bool   `yaml:"enabled" env:"COMPLAINTDESK_BACKUPS_ENABLED" env-default:"false"`
	Schedule string `yaml:"schedule" env:"COMPLAINTDESK_BACKUPS_SCHEDULE" env-default:"@daily"`
	Dir      string `yaml:"dir" env:"COMPLAINTDESK_BACKUPS_DIR" env-default:"data/backups"`
	Retain   int    `yaml:"retain" env:"COMPLAINTDESK_BACKUPS_RETAIN" env-default:"7"`
}

func (c *AppConfig) IsPostgres() bool {
	if c == nil {
		return false
	}
	switch c.DBDriver {
	case "postgres", "pgx", "postgresql":
		return true
	}
	return false
}

const maxTokenTTL = 24 * time.Hour

func (c *AppConfig) EffectiveTokenTTL() time.Duration {
	ttl := 3 * time.Hour
	if c != nil && c.Auth.TokenTTL > 0 {
		ttl = c.Auth.TokenTTL
	}
	if ttl > maxTokenTTL {
		return maxTokenTTL
	}
	return ttl
}
