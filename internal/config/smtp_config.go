package config

type SmtpConfig interface {
	GetSmtpHost() string
	GetSmtpPort() int
	GetSmtpAccount() string
	GetSmtpPassword() string
	GetSmtpFrom() string
	GetSmtpTLSMode() string
}

type Smtp struct{}

var _ SmtpConfig = Smtp{}

// GetSmtpHost returns an empty host when SMTP is not configured; codes are then only logged.
func (Smtp) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", "")
}

func (Smtp) GetSmtpPort() int {
	return GetEnvInt("SMTP_PORT", 587)
}

func (Smtp) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", "")
}

func (Smtp) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", "")
}

func (Smtp) GetSmtpFrom() string {
	return GetEnv("SMTP_FROM", "no-reply@localhost")
}

// GetSmtpTLSMode is one of "auto", "ssl" or "none".
func (Smtp) GetSmtpTLSMode() string {
	return GetEnv("SMTP_TLS_MODE", "auto")
}
