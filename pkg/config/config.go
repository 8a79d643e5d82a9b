package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from a .env file and environment variables.
// prefix: environment variable prefix (e.g. "FOLIOBASE_")
// target: pointer to the config struct to load into
func Load(prefix string, target interface{}) error {
	v := viper.New()

	// .env is optional; only a parse error on an existing file matters,
	// and that surfaces during Unmarshal via missing keys.
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()

	// Viper's AutomaticEnv does not populate Unmarshal when keys are not
	// pre-registered, so iterate the environment and set them explicitly.
	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		key, value := pair[0], pair[1]

		if strings.HasPrefix(key, prefixUpper) {
			// FOLIOBASE_DB_HOST -> db.host
			propKey := strings.TrimPrefix(key, prefixUpper)
			propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
			propKey = strings.TrimPrefix(propKey, ".")

			v.Set(propKey, value)
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}
