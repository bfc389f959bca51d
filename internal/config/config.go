package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Whisper  WhisperConfig  `mapstructure:"whisper"`
	Media    MediaConfig    `mapstructure:"media"`
	Polisher PolisherConfig `mapstructure:"polisher"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
	// MaxUploadMB bounds the in-memory part of multipart parsing.
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// PathsConfig locates the on-disk artifacts.
type PathsConfig struct {
	UploadDir         string `mapstructure:"upload_dir"`
	TranscriptionsDir string `mapstructure:"transcriptions_dir"`
	MarkdownsDir      string `mapstructure:"markdowns_dir"`
}

// WhisperConfig describes the whisper.cpp invocation.
type WhisperConfig struct {
	ExePath   string `mapstructure:"exe_path"`
	ModelPath string `mapstructure:"model_path"`
	ExtraArgs string `mapstructure:"extra_args"`
	// OutputDir receives the <id>.txt files; defaults to paths.transcriptions_dir.
	OutputDir string `mapstructure:"output_dir"`
}

type MediaConfig struct {
	FFmpegPath     string   `mapstructure:"ffmpeg_path"`
	FFprobePath    string   `mapstructure:"ffprobe_path"`
	SampleRate     int      `mapstructure:"sample_rate"`
	Channels       int      `mapstructure:"channels"`
	ConvertFormats []string `mapstructure:"convert_formats"`
}

// PolisherConfig configures the LLM note polisher.
type PolisherConfig struct {
	Provider string        `mapstructure:"provider"` // ollama, openai
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Model    string        `mapstructure:"model"`
	Prompt   string        `mapstructure:"prompt"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Auto polishes every successful transcription in the background run.
	Auto bool `mapstructure:"auto"`
}

type PipelineConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// StorageConfig configures the optional object-storage mirror.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3, r2, s3compatible, minio
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads config.yaml (./configs or .) or configPath, then applies
// environment overrides. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("server.port", "PORT")
	v.BindEnv("whisper.exe_path", "WHISPER_EXE_PATH")
	v.BindEnv("whisper.model_path", "WHISPER_MODEL_PATH")
	v.BindEnv("polisher.host", "OLLAMA_HOST")
	v.BindEnv("polisher.model", "POLISHER_MODEL")
	v.BindEnv("polisher.api_key", "OPENAI_API_KEY")
	v.BindEnv("polisher.base_url", "OPENAI_BASE_URL")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("database.password", "DATABASE_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Whisper.OutputDir == "" {
		cfg.Whisper.OutputDir = cfg.Paths.TranscriptionsDir
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("paths.upload_dir", "uploads")
	v.SetDefault("paths.transcriptions_dir", "transcriptions")
	v.SetDefault("paths.markdowns_dir", "markdowns")

	v.SetDefault("whisper.exe_path", "./whisper.cpp/main")
	v.SetDefault("whisper.model_path", "./models/ggml-base.en.bin")
	v.SetDefault("whisper.extra_args", "")

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.sample_rate", 16000)
	v.SetDefault("media.channels", 1)
	v.SetDefault("media.convert_formats", []string{"m4a", "mp4"})

	v.SetDefault("polisher.provider", "ollama")
	v.SetDefault("polisher.host", "http://localhost")
	v.SetDefault("polisher.port", 11434)
	v.SetDefault("polisher.model", "llama3")
	v.SetDefault("polisher.prompt", "Polish this transcript into a clean, readable Markdown document:")
	v.SetDefault("polisher.base_url", "https://api.openai.com/v1")
	v.SetDefault("polisher.timeout", 120*time.Second)
	v.SetDefault("polisher.auto", true)

	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.queue_size", 64)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "scribe")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/scribe.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scribe")
	v.SetDefault("database.dbname", "scribe")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the settings the pipeline cannot run without. It does
// not probe executables or directories; those are checked at startup.
func (c *Config) Validate() error {
	if c.Paths.UploadDir == "" {
		return fmt.Errorf("paths.upload_dir is required")
	}
	if c.Paths.TranscriptionsDir == "" {
		return fmt.Errorf("paths.transcriptions_dir is required")
	}
	if c.Paths.MarkdownsDir == "" {
		return fmt.Errorf("paths.markdowns_dir is required")
	}
	if c.Whisper.ExePath == "" || c.Whisper.ModelPath == "" {
		return fmt.Errorf("whisper.exe_path and whisper.model_path are required")
	}
	switch c.Polisher.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("polisher: unknown provider %q", c.Polisher.Provider)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	return c.Database.Validate()
}
