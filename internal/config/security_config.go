package config

type SecurityConfig interface {
	GetCleanupBatchSize() int
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetCleanupBatchSize() int {
	return GetEnvInt("CLEANUP_BATCH_SIZE", 100)
}

// GetRateLimitRPS is the sustained per-IP rate for credential submissions. Zero disables limiting.
func (Security) GetRateLimitRPS() float64 {
	return float64(GetEnvInt("RATE_LIMIT_RPS", 5))
}

func (Security) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", 10)
}
