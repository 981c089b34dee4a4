package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spigell/licitaciones-ranker/internal/secrets"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(_ *cobra.Command, _ []string) error {
		config, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}

		dump, err := dumpConfig(config)
		if err != nil {
			return err
		}

		fmt.Print(dump)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// dumpConfig renders the config as YAML without secret values.
func dumpConfig(config *Config) (string, error) {
	if config == nil {
		return "", nil
	}

	redacted := *config
	redacted.Credentials = secrets.Redact(config.Credentials)
	redacted.Portal.Password = secrets.Redact(config.Portal.Password)

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}
