package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"testemunhas/api/internal/analysis"
	"testemunhas/api/internal/detect"
	"testemunhas/api/internal/fields"
)

// Settings are the tunable tables of the pipeline: extra header synonyms,
// detector thresholds and report weights.
type Settings struct {
	Synonyms fields.SynonymTable `yaml:"sinonimos" json:"sinonimos"`
	Detect   detect.Config       `yaml:"deteccao" json:"deteccao"`
	Analysis analysis.Config     `yaml:"analise" json:"analise"`
}

func DefaultSettings() Settings {
	return Settings{
		Synonyms: fields.SynonymTable{},
		Detect:   detect.DefaultConfig(),
		Analysis: analysis.DefaultConfig(),
	}
}

// LoadSettings reads a YAML file over the defaults. An empty path returns
// the defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

var validate = validator.New()

// Validate reports every out-of-range value as field=tag pairs.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate settings: %w", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		parts = append(parts, fmt.Sprintf("%s=%s", ve.Namespace(), ve.Tag()))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(parts, ", "))
}

// Resolver builds a header resolver with the extra synonyms merged over
// the built-in vocabulary.
func (s Settings) Resolver() *fields.Resolver {
	return fields.NewResolver(fields.Merge(fields.DefaultSynonyms(), s.Synonyms), fields.DefaultRequired())
}
