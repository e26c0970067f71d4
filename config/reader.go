package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const defaultConfigFile = "config.toml"

// ReadConfig loads defaults, overlays config.toml (if present) and validates
// the result into Config.
func ReadConfig() (configDefinition, error) {
	return ReadConfigFile(defaultConfigFile)
}

func ReadConfigFile(path string) (configDefinition, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config, fmt.Errorf("failed to load default config: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config, err
	}

	var cfg configDefinition
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config, err
	}

	Config = cfg
	return cfg, nil
}

func validate(cfg configDefinition) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed on '%s'", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
