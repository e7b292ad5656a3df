package config

type StorageConfig interface {
	GetDatabaseURL() string
	GetRedisURL() string
	GetJanitorSchedule() string
}

type Storage struct {
	DatabaseURL     string `yaml:"database_url" env:"DATABASE_URL" env-description:"PostgreSQL DSN, in-memory repositories are used when empty"`
	RedisURL        string `yaml:"redis_url" env:"REDIS_URL" env-description:"Redis URL for the revoked token list, in-memory when empty"`
	JanitorSchedule string `yaml:"janitor_schedule" env:"JANITOR_SCHEDULE" env-default:"@every 1m" env-description:"Cron spec for expired token cleanup"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Storage) GetRedisURL() string {
	return s.RedisURL
}

func (s Storage) GetJanitorSchedule() string {
	if s.JanitorSchedule == "" {
		return "@every 1m"
	}
	return s.JanitorSchedule
}
