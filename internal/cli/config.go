package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/nexus-quest/pulse/internal/daemon"
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the default config if none exists")
	rootCmd.AddCommand(configCmd)
}

var configInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := daemon.ConfigPath()
	if configInit {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[ok] wrote %s\n", path)
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n", path)
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}
