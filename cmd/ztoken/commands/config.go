package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// envPrefix is stripped from environment variables during settings loading
// (e.g. ZTOKEN_URL → url).
const envPrefix = "ZTOKEN_"

// settingsKeys are the configuration keys CLI flags may override.
var settingsKeys = []string{"url", "user", "realm", "insecure"}

// settings is the merged per-invocation view of the token request
// parameters.
type settings struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Realm    string `yaml:"realm"`
	Insecure bool   `yaml:"insecure"`
}

// loadSettings merges token request settings from various sources with
// precedence: config file → environment variables → CLI flags.
func loadSettings(configPath string, cmd *cli.Command, environFunc func() []string) (*settings, error) {
	k := koanf.New(".")

	// 1. Load from the config file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractSettingsFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	s := &settings{}
	if err := k.UnmarshalWithConf("", s, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	return s, nil
}

// extractSettingsFlags collects the values of set flags that map onto
// settings keys. Unset flags are skipped to preserve precedence from earlier
// sources.
func extractSettingsFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for _, name := range settingsKeys {
		if !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[name] = value
		}
	}
	return values
}
