package config

import (
	"encoding/json"
	"reflect"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Vendors lists the supported OCR vendors in failover order.
var Vendors = []string{"vision", "ocrspace", "tesseract"}

// Config holds the full application configuration.
type Config struct {
	OCR        OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	Worker     WorkerConfig       `yaml:"worker" mapstructure:"worker"`
	Cache      CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Store      StoreConfig        `yaml:"store" mapstructure:"store"`
	Server     ServerConfig       `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    map[string]float64 `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig          `yaml:"log" mapstructure:"log"`
}

// OCRConfig configures vendor selection, input policy and the adapters.
type OCRConfig struct {
	// Provider names the vendor that ocr.api_key belongs to. It does not
	// influence vendor selection, which is driven by input metadata and
	// failure counts.
	Provider      string            `yaml:"provider" mapstructure:"provider"`
	APIKey        string            `yaml:"api_key" mapstructure:"api_key"`
	MinConfidence float64           `yaml:"min_confidence" mapstructure:"min_confidence"`
	AllowedMime   []string          `yaml:"allowed_mime" mapstructure:"allowed_mime"`
	MaxPages      int               `yaml:"max_pages" mapstructure:"max_pages"`
	FailThreshold int               `yaml:"fail_threshold" mapstructure:"fail_threshold"`
	Endpoints     map[string]string `yaml:"endpoints" mapstructure:"endpoints"`
	Vision        VendorConfig      `yaml:"vision" mapstructure:"vision"`
	OCRSpace      VendorConfig      `yaml:"ocrspace" mapstructure:"ocrspace"`
	Tesseract     TesseractConfig   `yaml:"tesseract" mapstructure:"tesseract"`
}

// VendorConfig holds credentials and client settings for a hosted OCR API.
type VendorConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// TesseractConfig configures the local tesseract engine.
type TesseractConfig struct {
	Language string `yaml:"language" mapstructure:"language"`
	DataPath string `yaml:"data_path" mapstructure:"data_path"`
}

// WorkerConfig configures the asynchronous job worker.
type WorkerConfig struct {
	Limit              int `yaml:"limit" mapstructure:"limit"`
	MaxRetries         int `yaml:"max_retries" mapstructure:"max_retries"` // 0 = unbounded
	BaseDelayMs        int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs         int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	IntervalSecs       int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// CacheConfig configures the in-process layer of the result cache.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	Capacity   int `yaml:"capacity" mapstructure:"capacity"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// MonitoringConfig configures the queue health checker.
type MonitoringConfig struct {
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	BacklogThreshold  int    `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	ErrorThreshold    int    `yaml:"error_threshold" mapstructure:"error_threshold"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the variable names used by earlier
// deployments of the OCR functions. The PAYRECON_ name takes precedence.
var legacyEnv = map[string]string{
	"ocr.provider":         "OCR_PROVIDER",
	"ocr.api_key":          "OCR_API_KEY",
	"ocr.min_confidence":   "OCR_MIN_CONFIDENCE",
	"ocr.allowed_mime":     "OCR_ALLOWED_MIME",
	"ocr.max_pages":        "OCR_MAX_PAGES",
	"ocr.fail_threshold":   "OCR_FAIL_THRESHOLD",
	"ocr.endpoints":        "OCR_ENDPOINTS",
	"ocr.vision.api_key":   "GOOGLE_VISION_API_KEY",
	"ocr.ocrspace.api_key": "OCRSPACE_API_KEY",
	"store.database_url":   "DATABASE_URL",
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "PAYRECON_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("ocr.provider", "ocrspace")
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.min_confidence", 0.8)
	v.SetDefault("ocr.allowed_mime", []string{"image/jpeg", "image/png", "application/pdf"})
	v.SetDefault("ocr.max_pages", 3)
	v.SetDefault("ocr.fail_threshold", 3)
	v.SetDefault("ocr.endpoints", map[string]string{})
	v.SetDefault("ocr.vision.api_key", "")
	v.SetDefault("ocr.vision.base_url", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("ocr.ocrspace.api_key", "")
	v.SetDefault("ocr.ocrspace.base_url", "https://api.ocr.space/parse/image")
	v.SetDefault("ocr.tesseract.language", "eng")
	v.SetDefault("ocr.tesseract.data_path", "")
	v.SetDefault("worker.limit", 5)
	v.SetDefault("worker.max_retries", 10)
	v.SetDefault("worker.base_delay_ms", 1000)
	v.SetDefault("worker.max_delay_ms", 30000)
	v.SetDefault("worker.request_timeout_secs", 30)
	v.SetDefault("worker.interval_secs", 0)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.backlog_threshold", 500)
	v.SetDefault("monitoring.error_threshold", 50)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("pricing.vision", 0.0015)
	v.SetDefault("pricing.ocrspace", 0.0005)
	v.SetDefault("pricing.tesseract", 0.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		jsonStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// jsonStringHook decodes string values holding a JSON array or object into
// slice and map fields, so OCR_ALLOWED_MIME='["image/png"]' works.
func jsonStringHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		switch {
		case to.Kind() == reflect.Slice && strings.HasPrefix(s, "["):
		case to.Kind() == reflect.Map && strings.HasPrefix(s, "{"):
		default:
			return data, nil
		}
		out := reflect.New(to)
		if err := json.Unmarshal([]byte(s), out.Interface()); err != nil {
			return nil, eris.Wrapf(err, "config: decode JSON into %s", to)
		}
		return out.Elem().Interface(), nil
	}
}

// Validate checks value ranges that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.OCR.MinConfidence <= 0 || c.OCR.MinConfidence > 1 {
		return eris.Errorf("config: ocr.min_confidence must be in (0,1], got %v", c.OCR.MinConfidence)
	}
	if c.OCR.MaxPages < 1 {
		return eris.Errorf("config: ocr.max_pages must be at least 1, got %d", c.OCR.MaxPages)
	}
	if c.OCR.FailThreshold < 0 {
		return eris.Errorf("config: ocr.fail_threshold must not be negative, got %d", c.OCR.FailThreshold)
	}
	if !slices.Contains(Vendors, c.OCR.Provider) {
		return eris.Errorf("config: unknown ocr.provider %q", c.OCR.Provider)
	}
	if c.Worker.MaxRetries < 0 {
		return eris.Errorf("config: worker.max_retries must not be negative, got %d", c.Worker.MaxRetries)
	}
	return nil
}

// Credential returns the API key for vendor. The generic ocr.api_key is used
// for the configured provider when its own key is unset.
func (c OCRConfig) Credential(vendor string) string {
	var key string
	switch vendor {
	case "vision":
		key = c.Vision.APIKey
	case "ocrspace":
		key = c.OCRSpace.APIKey
	}
	if key == "" && vendor == c.Provider {
		key = c.APIKey
	}
	return key
}

const redacted = "[redacted]"

// Redacted returns a copy of c with credentials masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	c.OCR.APIKey = mask(c.OCR.APIKey)
	c.OCR.Vision.APIKey = mask(c.OCR.Vision.APIKey)
	c.OCR.OCRSpace.APIKey = mask(c.OCR.OCRSpace.APIKey)
	c.Monitoring.WebhookURL = mask(c.Monitoring.WebhookURL)
	if c.Store.DatabaseURL != "" {
		c.Store.DatabaseURL = redacted
	}
	return c
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
