package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	ParserAPIKey  string `envconfig:"PARSER_API_KEY"`
	ParserBaseURL string `envconfig:"PARSER_BASE_URL" default:"https://api.cloud.llamaindex.ai"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docchat-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Cost controls for the generative model
	EnrichDailyQuota int `envconfig:"ENRICH_DAILY_QUOTA" default:"250"`
	ModelRPM         int `envconfig:"MODEL_RPM" default:"10"`

	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// envconfig's required tag accepts a present-but-empty variable.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required key DOCCHAT_DATABASE_URL missing value")
	}
	if cfg.ModelRPM <= 0 {
		cfg.ModelRPM = 10
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasParser() bool {
	return c.ParserAPIKey != ""
}
