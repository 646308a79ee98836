package cookie

// Config holds the default cookie attributes.
type Config struct {
	Domain string `env:"COOKIE_DOMAIN"`
	Secure bool   `env:"COOKIE_SECURE" envDefault:"true"`
}
