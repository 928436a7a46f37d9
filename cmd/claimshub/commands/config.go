package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd is the parent command for configuration tooling.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  `Commands for checking hub configuration files.`,
}

// configCheckCmd validates a configuration file and prints the resolved
// values, defaults applied.
var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and validate it. Prints
the resolved configuration on success.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}

		fmt.Println("Configuration OK")
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	ConfigCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	ConfigCmd.AddCommand(configCheckCmd)
}
