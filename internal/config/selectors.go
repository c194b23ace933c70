package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"lot-watcher/internal/scraper"
)

// LoadSelectors читает YAML поверх селекторов по умолчанию: перечисленные в
// файле списки заменяют встроенные целиком. Пустой путь: только встроенные.
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	selectors := scraper.DefaultSelectors()
	if filePath == "" {
		return selectors, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close selectors file: %v", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// LoadSelectors для текущего конфига.
func (c *Config) LoadSelectors() (*scraper.Selectors, error) {
	return LoadSelectors(c.SelectorsFile)
}

func validateSelectors(s *scraper.Selectors) error {
	if len(s.CardSelectors) == 0 {
		return fmt.Errorf("card_selectors is required")
	}
	if len(s.TitleSelectors) == 0 {
		return fmt.Errorf("title_selectors is required")
	}
	if len(s.PlateSelectors) == 0 && len(s.PlatePatterns) == 0 {
		return fmt.Errorf("plate_selectors or plate_patterns is required")
	}
	if len(s.LinkSelectors) == 0 {
		return fmt.Errorf("link_selectors is required")
	}
	return nil
}
