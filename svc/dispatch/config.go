package dispatch

import "time"

// Config holds the bulk-send settings. ClaimTTL bounds a batch claim when
// BatchGuard is on.
type Config struct {
	Delay       time.Duration `env:"EMAIL_SEND_DELAY" envDefault:"600ms"`
	ReplyTo     string        `env:"EMAIL_REPLY_TO" envDefault:"zha.yitong@gmail.com"`
	Unsubscribe string        `env:"EMAIL_UNSUBSCRIBE" envDefault:"zha.yitong@gmail.com"`
	SiteURL     string        `env:"SITE_URL" envDefault:"https://yishanandyitong.wedding"`
	BatchGuard  bool          `env:"DISPATCH_BATCH_GUARD" envDefault:"false"`
	ClaimTTL    time.Duration `env:"DISPATCH_CLAIM_TTL" envDefault:"30m"`
}
