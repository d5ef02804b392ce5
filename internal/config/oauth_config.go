package config

import "time"

type OAuthConfig interface {
	GetLoginSessionLifetime() time.Duration
	GetOTPLifetime() time.Duration
	GetAuthCodeLifetime() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultIDTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetLoginSessionLifetime() time.Duration {
	return GetEnvDuration("LOGIN_SESSION_LIFETIME", time.Hour)
}

func (OAuth) GetOTPLifetime() time.Duration {
	return GetEnvDuration("OTP_LIFETIME", 30*time.Minute)
}

func (OAuth) GetAuthCodeLifetime() time.Duration {
	return GetEnvDuration("AUTH_CODE_LIFETIME", 5*time.Minute)
}

func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetDefaultIDTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return 30 * 24 * time.Hour
}
