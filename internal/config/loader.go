package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lot-watcher/internal/normalize"
)

// Load строит конфиг без валидации: значения по умолчанию, затем YAML (если путь
// задан), затем .env и окружение. Validate вызывается после флагов командной строки.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		if err := decodeFile(filePath, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadEnv(cfg, ".env"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(filePath string, cfg *Config) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// LoadEnv подгружает .env (если есть) и переопределяет поля из окружения.
func LoadEnv(cfg *Config, envFiles ...string) error {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.Listing.BaseURL, "LISTING_URL")
	setString(&cfg.Filter.PlatePrefix, "PLATE_PREFIX")
	setString(&cfg.Storage.Path, "SEEN_FILE")
	setString(&cfg.Storage.DSN, "STORAGE_DSN")
	setString(&cfg.Debug.DumpDir, "DUMP_DIR")

	if err := setInt(&cfg.Pagination.MaxPages, "MAX_PAGES"); err != nil {
		return err
	}
	if err := setInt(&cfg.Notify.MessageDelayMS, "MESSAGE_DELAY_MS"); err != nil {
		return err
	}
	if err := setBool(&cfg.Rod.Headless, "HEADLESS"); err != nil {
		return err
	}
	if err := setBool(&cfg.Rod.Enabled, "USE_BROWSER"); err != nil {
		return err
	}

	cfg.Filter.PlatePrefix = normalize.Plate(cfg.Filter.PlatePrefix)
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
