package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// applyEnv lets secrets and deployment knobs come from the environment
// instead of the config file. Environment values win.
func applyEnv(cfg *AppConfig) {
	if v := envValue("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := envValue("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := envValue("STORE"); v != "" {
		cfg.Store = v
	}
	if v := envValue("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := envValue("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := envValue("PINATA_JWT"); v != "" {
		cfg.IPFS.Pinata.JWT = v
	}
	if v := envValue("S3_ACCESS_KEY_ID"); v != "" {
		cfg.IPFS.S3.AccessKeyID = v
	}
	if v := envValue("S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.IPFS.S3.SecretAccessKey = v
	}
	applyAIKeys(&cfg.AI)
}

func applyAIKeys(ai *AIConfig) {
	openAIKey := envValue("OPENAI_API_KEY")
	anthropicKey := envValue("ANTHROPIC_API_KEY")

	for i := range ai.Providers {
		p := &ai.Providers[i]
		if strings.TrimSpace(p.APIKey) != "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(p.Type), "anthropic") {
			p.APIKey = anthropicKey
		} else {
			p.APIKey = openAIKey
		}
	}

	if len(ai.Providers) == 0 && openAIKey != "" {
		ai.Providers = append(ai.Providers, AIProvider{
			ID:           "openai",
			Name:         "OpenAI",
			Type:         "OpenAI",
			APIKey:       openAIKey,
			DefaultModel: defaultOpenAIModel,
			Enabled:      true,
		})
	}
}
