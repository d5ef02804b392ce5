package config

import "time"

// Store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type StorageConfig interface {
	GetStore() string
	GetSQLiteDSN() string
	GetCodeStore() string
	GetRedisAddr() string
	GetRedisDB() int
	GetCacheTTL() time.Duration
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStore() string {
	return GetEnv("STORE", StoreMemory)
}

func (Storage) GetSQLiteDSN() string {
	return GetEnv("SQLITE_DSN", "./data/auth.db")
}

// GetCodeStore selects where one-time codes live. Defaults to the main store.
func (s Storage) GetCodeStore() string {
	return GetEnv("CODE_STORE", s.GetStore())
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

// GetCacheTTL bounds how stale tenant, client and connection metadata may be.
func (Storage) GetCacheTTL() time.Duration {
	return GetEnvDuration("CACHE_TTL", 30*time.Second)
}
