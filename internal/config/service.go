package config

import "time"

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	Name        string       `mapstructure:"name"`
	Environment string       `mapstructure:"environment"`
	Version     string       `mapstructure:"version"`
	ClientURL   string       `mapstructure:"client_url"`
	JWTSecret   string       `mapstructure:"jwt_secret"`
	Stripe      StripeConfig `mapstructure:"stripe"`

	// CreditWarningRatio is the fraction of a tenant's starting credits
	// below which a low-balance warning is dispatched.
	CreditWarningRatio float64 `mapstructure:"credit_warning_ratio"`

	// ProviderTimeout bounds outbound payment-provider API calls made
	// while repairing subscription records.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// StripeConfig holds the payment-provider credentials.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}
