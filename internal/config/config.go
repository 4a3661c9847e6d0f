package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"yashubustudio/semgraph/internal/logger"
	"yashubustudio/semgraph/semgraph"
)

const envPrefix = "SEMGRAPH"

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig            `mapstructure:"server" yaml:"server"`
	Log      LogConfig               `mapstructure:"log" yaml:"log"`
	Embedder semgraph.EmbedderConfig `mapstructure:"embedder" yaml:"embedder"`
	Analysis semgraph.Config         `mapstructure:"analysis" yaml:"analysis"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Host                  string        `mapstructure:"host" yaml:"host"`
	Port                  int           `mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
	CORSOrigins           []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxConcurrentAnalyses int           `mapstructure:"max_concurrent_analyses" yaml:"max_concurrent_analyses" validate:"gte=1"`
	Backlog               int           `mapstructure:"backlog" yaml:"backlog" validate:"gte=0"`
	BacklogTimeout        time.Duration `mapstructure:"backlog_timeout" yaml:"backlog_timeout" validate:"gt=0"`
	MaxBodyBytes          int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes" validate:"gte=1"`
	ReadHeaderTimeout     time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8000,
			CORSOrigins:           []string{"*"},
			MaxConcurrentAnalyses: 4,
			Backlog:               32,
			BacklogTimeout:        30 * time.Second,
			MaxBodyBytes:          1 << 20,
			ReadHeaderTimeout:     5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Embedder: semgraph.EmbedderConfig{
			ModelPath:     "./models/all-MiniLM-L6-v2/model.onnx",
			TokenizerPath: "./models/all-MiniLM-L6-v2/tokenizer.json",
		},
		Analysis: semgraph.DefaultConfig(),
	}
	cfg.Embedder.ApplyDefaults()
	return cfg
}

// Load reads configFile (or ./config.yaml when empty and present), then
// .env and SEMGRAPH_* environment variables, which take precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	v.SetConfigType("yaml")

	loadDotEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Embedder.ApplyDefaults()
	cfg.Analysis.ApplyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints across every section.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Get().Debug(".env file not found or unable to load")
	}
}

// setDefaults registers every key so environment variables can override keys
// that are absent from the config file. Defaults live here rather than in
// ApplyDefaults so an explicit zero in the file survives.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.max_concurrent_analyses", d.Server.MaxConcurrentAnalyses)
	v.SetDefault("server.backlog", d.Server.Backlog)
	v.SetDefault("server.backlog_timeout", d.Server.BacklogTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("embedder.backend", string(d.Embedder.Backend))
	v.SetDefault("embedder.ort_dll", d.Embedder.OrtDLL)
	v.SetDefault("embedder.model_path", d.Embedder.ModelPath)
	v.SetDefault("embedder.tokenizer_path", d.Embedder.TokenizerPath)
	v.SetDefault("embedder.max_seq_len", d.Embedder.MaxSeqLen)
	v.SetDefault("embedder.model_id", d.Embedder.ModelID)
	v.SetDefault("embedder.dimensions", d.Embedder.Dimensions)
	v.SetDefault("embedder.cache_ttl", d.Embedder.CacheTTL)
	v.SetDefault("embedder.cache_dir", d.Embedder.CacheDir)

	a := d.Analysis
	v.SetDefault("analysis.min_line_length", a.MinLineLength)
	v.SetDefault("analysis.min_chunks", a.MinChunks)
	v.SetDefault("analysis.max_chunks", a.MaxChunks)
	v.SetDefault("analysis.display_length", a.DisplayLength)
	v.SetDefault("analysis.ellipsis", a.Ellipsis)
	v.SetDefault("analysis.coordinate_scale", a.CoordinateScale)
	v.SetDefault("analysis.projector.n_neighbors", a.Projector.NNeighbors)
	v.SetDefault("analysis.projector.min_dist", a.Projector.MinDist)
	v.SetDefault("analysis.projector.spread", a.Projector.Spread)
	v.SetDefault("analysis.projector.n_epochs", a.Projector.NEpochs)
	v.SetDefault("analysis.projector.negative_sample_rate", a.Projector.NegativeSampleRate)
	v.SetDefault("analysis.projector.learning_rate", a.Projector.LearningRate)
	v.SetDefault("analysis.projector.seed", a.Projector.Seed)
	v.SetDefault("analysis.cluster.max_clusters", a.Cluster.MaxClusters)
	v.SetDefault("analysis.cluster.n_init", a.Cluster.NInit)
	v.SetDefault("analysis.cluster.max_iter", a.Cluster.MaxIter)
	v.SetDefault("analysis.cluster.tolerance", a.Cluster.Tolerance)
	v.SetDefault("analysis.cluster.seed", a.Cluster.Seed)
}
