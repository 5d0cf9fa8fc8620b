package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shmkit/itsgate/internal/cli/prompt"
	"github.com/shmkit/itsgate/pkg/config"
	"github.com/shmkit/itsgate/pkg/directory/store"
)

var (
	initForce    bool
	initSeedDemo bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Write a sample itsgate configuration file.

By default the file is created at $XDG_CONFIG_HOME/itsgate/config.yaml.
Use --config for a custom path and --seed-demo to create a local sqlite
directory populated with demo projects, structures, sensors, and the
admin/manager/contractor accounts.

Examples:
  # Initialize with default location
  itsgate init

  # Initialize with a demo directory for local development
  itsgate init --seed-demo

  # Force overwrite an existing config
  itsgate init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVar(&initSeedDemo, "seed-demo", false, "Create and seed a local sqlite demo directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		ok, err := prompt.Confirm(fmt.Sprintf("Config %s exists, overwrite", configPath), false)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Configuration file created at: %s\n", configPath)

	if initSeedDemo {
		if err := seedDemo(cfg); err != nil {
			return err
		}
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point gateway.cert_file/key_file at your TLS server credentials")
	fmt.Println("  2. Edit the instances section for your directory and time-series backends")
	fmt.Println("  3. Start the gateway with: itsgate start")
	return nil
}

func seedDemo(cfg *config.Config) error {
	for selector, inst := range cfg.Instances {
		if inst.Directory.Type != store.DatabaseTypeSQLite {
			continue
		}

		dirCfg := inst.Directory
		st, err := store.New(&dirCfg)
		if err != nil {
			return fmt.Errorf("creating demo directory for instance %s: %w", selector, err)
		}
		if err := st.Seed(store.DefaultSeedUsers()); err != nil {
			st.Close()
			return fmt.Errorf("seeding demo directory for instance %s: %w", selector, err)
		}
		if err := st.Close(); err != nil {
			return err
		}

		fmt.Printf("Demo directory seeded at: %s\n", dirCfg.SQLite.Path)
		fmt.Println("  Accounts: admin/admin (AD), manager/manager (CM), contractor/contractor (CT)")
	}
	return nil
}
