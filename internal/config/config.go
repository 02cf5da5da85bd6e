package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath    string `env:"DB_PATH"    envDefault:"db.sqlite"`
	HTTPAddr  string `env:"HTTP_ADDR"  envDefault:":8080"`
	JWTSecret string `env:"JWT_SECRET"`
	SiteURL   string `env:"SITE_URL"   envDefault:"http://localhost:8080"`

	SMTPHost          string        `env:"SMTP_HOST"            envDefault:"smtp.yandex.ru"`
	SMTPPort          int           `env:"SMTP_PORT"            envDefault:"465"`
	SMTPUsername      string        `env:"SMTP_USERNAME"`
	SMTPPassword      string        `env:"SMTP_PASSWORD"`
	SMTPSSL           bool          `env:"SMTP_SSL"             envDefault:"true"`
	MailFrom          string        `env:"MAIL_FROM"            envDefault:"projectnewspaper@yandex.ru"`
	MailTransport     string        `env:"MAIL_TRANSPORT"       envDefault:"smtp"`
	MailRetryAttempts uint          `env:"MAIL_RETRY_ATTEMPTS"  envDefault:"1"`
	MailDomainGap     time.Duration `env:"MAIL_DOMAIN_INTERVAL" envDefault:"200ms"`

	DigestSchedule string `env:"DIGEST_SCHEDULE" envDefault:"27 1 * * 3"`
	DigestTimezone string `env:"DIGEST_TIMEZONE" envDefault:"UTC"`
	NotifyDedupe   bool   `env:"NOTIFY_DEDUPE"   envDefault:"false"`

	TaskWorkers   int           `env:"TASK_WORKERS"    envDefault:"4"`
	TaskQueueSize int           `env:"TASK_QUEUE_SIZE" envDefault:"1000"`
	TaskTimeout   time.Duration `env:"TASK_TIMEOUT"    envDefault:"5m"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	TelegramToken       string `env:"TELEGRAM_TOKEN"`
	TelegramAdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`

	ImportFeeds    []string `env:"IMPORT_FEEDS"`
	ImportCategory string   `env:"IMPORT_CATEGORY" envDefault:"Syndicated"`
	ImportAuthorID int64    `env:"IMPORT_AUTHOR_ID"`
	ImportSchedule string   `env:"IMPORT_SCHEDULE" envDefault:"@every 30m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Parse reads the configuration from the environment.
func Parse() (Config, error) {
	return env.ParseAs[Config]()
}

func (c Config) DigestLocation() (*time.Location, error) {
	return time.LoadLocation(c.DigestTimezone)
}
