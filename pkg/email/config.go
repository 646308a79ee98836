package email

// Config holds email transport configuration. An empty server token leaves
// the transport unconfigured unless DevMailDir is set.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	Sender               string `env:"EMAIL_SENDER" envDefault:"Yishan & Yitong Wedding <wedding@yishanandyitong.wedding>"`
	ReplyTo              string `env:"EMAIL_REPLY_TO" envDefault:"zha.yitong@gmail.com"`
	DevMailDir           string `env:"DEV_MAIL_DIR"`
}

// Configured reports whether a real transport can be built from cfg.
func (c Config) Configured() bool {
	return c.PostmarkServerToken != ""
}

// NewFromConfig picks the Postmark transport when a server token is present,
// the file sender when DEV_MAIL_DIR is set, and ErrNotConfigured otherwise.
func NewFromConfig(cfg Config, opts ...PostmarkOption) (Sender, error) {
	switch {
	case cfg.Configured():
		return NewPostmarkClient(cfg, opts...)
	case cfg.DevMailDir != "":
		return NewDevSender(cfg.DevMailDir), nil
	default:
		return nil, ErrNotConfigured
	}
}
