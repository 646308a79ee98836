package identity

import "time"

// Config holds token lifetimes and the signing secret.
type Config struct {
	Secret        string        `env:"STORE_KEY,required"`
	SiteURL       string        `env:"SITE_URL" envDefault:"https://yishanandyitong.wedding"`
	SignInTimeout time.Duration `env:"SIGN_IN_TIMEOUT" envDefault:"5s"`
	MagicLinkTTL  time.Duration `env:"MAGIC_LINK_TTL" envDefault:"1h"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
}

func (c Config) withDefaults() Config {
	if c.SignInTimeout <= 0 {
		c.SignInTimeout = 5 * time.Second
	}
	if c.MagicLinkTTL <= 0 {
		c.MagicLinkTTL = time.Hour
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = time.Hour
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	return c
}
