package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. It is loaded once at startup
// and treated as immutable; components receive the sections they need.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Auth        AuthConfig        `yaml:"auth"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Scraping    ScrapingConfig    `yaml:"scraping"`
	Database    DatabaseConfig    `yaml:"database"`
	Email       EmailConfig       `yaml:"email"`
	Translation TranslationConfig `yaml:"translation"`
}

// SiteConfig describes the monitored site and its page structure
type SiteConfig struct {
	URL            string   `yaml:"url"`
	LoginURL       string   `yaml:"login_url"`
	Keywords       []string `yaml:"keywords"`
	UrgentKeywords []string `yaml:"urgent_keywords"`

	// selector strategies, tried in order; configured value first
	ArticleSelectors []string `yaml:"article_selectors"`
	TitleSelectors   []string `yaml:"title_selectors"`
	DateSelectors    []string `yaml:"date_selectors"`
	SummarySelectors []string `yaml:"summary_selectors"`
	ContentSelectors []string `yaml:"content_selectors"`
	NextPageSelector string   `yaml:"next_page_selector"`

	EmailFieldSelector    string `yaml:"email_field_selector"`
	PasswordFieldSelector string `yaml:"password_field_selector"`
	SubmitSelector        string `yaml:"submit_selector"`

	// access-tier and login-wall detection phrase lists
	MemberPhrases        []string `yaml:"member_phrases"`
	MemberMarkup         []string `yaml:"member_markup"`
	LoginRequiredPhrases []string `yaml:"login_required_phrases"`
}

// AuthConfig holds authentication settings; credentials come from the
// environment via ${VAR} expansion in the YAML file
type AuthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Email             string        `yaml:"email"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	ContinueOnFailure bool          `yaml:"continue_on_failure"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	SessionFile       string        `yaml:"session_file"`
}

// MonitoringConfig holds the daemon loop settings
type MonitoringConfig struct {
	CheckInterval        time.Duration `yaml:"check_interval"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
}

// ScrapingConfig holds page extraction settings
type ScrapingConfig struct {
	MaxPages         int           `yaml:"max_pages"`
	DelayMin         time.Duration `yaml:"delay_min"`
	DelayMax         time.Duration `yaml:"delay_max"`
	MinContentLength int           `yaml:"min_content_length"`
}

// DatabaseConfig holds the sqlite ledger settings
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	CleanupEnabled  bool          `yaml:"cleanup_enabled"`
	KeepRecordsDays int           `yaml:"keep_records_days"`
}

// EmailConfig holds notification dispatch settings
type EmailConfig struct {
	SMTPHost               string   `yaml:"smtp_host"`
	SMTPPort               int      `yaml:"smtp_port"`
	StartTLS               bool     `yaml:"starttls"`
	From                   string   `yaml:"from"`
	Password               string   `yaml:"password"`
	Recipients             []string `yaml:"recipients"`
	SubjectPrefix          string   `yaml:"subject_prefix"`
	BatchNotifications     bool     `yaml:"batch_notifications"`
	IncludeFullContent     bool     `yaml:"include_full_content"`
	SendErrorNotifications bool     `yaml:"send_error_notifications"`
	ErrorThreshold         int      `yaml:"error_notification_threshold"`
	MaxRetries             int      `yaml:"max_retries"`
}

// TranslationConfig holds title translation settings for an
// OpenAI-compatible endpoint
type TranslationConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	SourceLang  string        `yaml:"source_lang"`
	TargetLang  string        `yaml:"target_lang"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables so credentials stay out of the file
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Site.LoginURL == "" {
		cfg.Site.LoginURL = cfg.Site.URL
	}
	if len(cfg.Site.ArticleSelectors) == 0 {
		cfg.Site.ArticleSelectors = []string{"article", ".article", ".post", ".news-item", ".entry", "[class*=article]"}
	}
	if len(cfg.Site.TitleSelectors) == 0 {
		cfg.Site.TitleSelectors = []string{"h2", "h3", ".title", ".headline", "a"}
	}
	if len(cfg.Site.DateSelectors) == 0 {
		cfg.Site.DateSelectors = []string{".date", ".published", "time", "[datetime]"}
	}
	if len(cfg.Site.SummarySelectors) == 0 {
		cfg.Site.SummarySelectors = []string{".excerpt", ".summary", "p"}
	}
	if len(cfg.Site.ContentSelectors) == 0 {
		cfg.Site.ContentSelectors = []string{".article-content", ".entry-content", ".post-content", "article .content", "[class*=content]"}
	}
	if cfg.Site.NextPageSelector == "" {
		cfg.Site.NextPageSelector = "a.next, a[rel=next], .pagination .next"
	}
	if len(cfg.Site.MemberPhrases) == 0 {
		cfg.Site.MemberPhrases = []string{"会員限定", "会員専用", "プレミアム", "有料会員", "登録会員", "member-only", "premium", "subscription"}
	}
	if len(cfg.Site.MemberMarkup) == 0 {
		cfg.Site.MemberMarkup = []string{"member-only", "premium", "subscriber-only", "paywall", "locked"}
	}
	if len(cfg.Site.LoginRequiredPhrases) == 0 {
		cfg.Site.LoginRequiredPhrases = []string{"ログインが必要です", "ログインしてください", "会員登録が必要", "この記事を読むには", "login required", "sign in to read", "subscription required"}
	}

	if cfg.Auth.MaxRetries == 0 {
		cfg.Auth.MaxRetries = 3
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Auth.SessionFile == "" {
		cfg.Auth.SessionFile = "data/session.json"
	}

	if cfg.Monitoring.CheckInterval == 0 {
		cfg.Monitoring.CheckInterval = 60 * time.Minute
	}
	if cfg.Monitoring.RequestTimeout == 0 {
		cfg.Monitoring.RequestTimeout = 30 * time.Second
	}
	if cfg.Monitoring.MaxConsecutiveErrors == 0 {
		cfg.Monitoring.MaxConsecutiveErrors = 5
	}

	if cfg.Scraping.MaxPages == 0 {
		cfg.Scraping.MaxPages = 5
	}
	if cfg.Scraping.DelayMin == 0 {
		cfg.Scraping.DelayMin = time.Second
	}
	if cfg.Scraping.DelayMax == 0 {
		cfg.Scraping.DelayMax = 3 * time.Second
	}
	if cfg.Scraping.MinContentLength == 0 {
		cfg.Scraping.MinContentLength = 100
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:data/articles.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.KeepRecordsDays == 0 {
		cfg.Database.KeepRecordsDays = 90
	}

	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.SubjectPrefix == "" {
		cfg.Email.SubjectPrefix = "[news-monitor]"
	}
	if cfg.Email.ErrorThreshold == 0 {
		cfg.Email.ErrorThreshold = 3
	}
	if cfg.Email.MaxRetries == 0 {
		cfg.Email.MaxRetries = 3
	}

	if cfg.Translation.SourceLang == "" {
		cfg.Translation.SourceLang = "Japanese"
	}
	if cfg.Translation.TargetLang == "" {
		cfg.Translation.TargetLang = "Korean"
	}
	if cfg.Translation.MinInterval == 0 {
		cfg.Translation.MinInterval = 500 * time.Millisecond
	}
	if cfg.Translation.Timeout == 0 {
		cfg.Translation.Timeout = 30 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Site.URL == "" {
		return fmt.Errorf("site.url is required")
	}
	if len(cfg.Site.Keywords) == 0 && len(cfg.Site.UrgentKeywords) == 0 {
		return fmt.Errorf("site.keywords is required")
	}
	if cfg.Auth.Enabled && cfg.Auth.MaxRetries < 1 {
		return fmt.Errorf("auth.max_retries must be at least 1")
	}
	if cfg.Monitoring.CheckInterval < time.Minute {
		return fmt.Errorf("monitoring.check_interval must be at least 1 minute")
	}
	if cfg.Scraping.DelayMax < cfg.Scraping.DelayMin {
		return fmt.Errorf("scraping.delay_max must not be less than scraping.delay_min")
	}
	if cfg.Translation.Enabled && cfg.Translation.Model == "" {
		return fmt.Errorf("translation.model is required when translation is enabled")
	}
	return nil
}
