// Command libretto is a Composer-compatible dependency installer: it
// resolves a project's requirements, fetches and verifies every package,
// and regenerates the autoloader.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/libretto-pm/libretto-sub002/internal/config"
	"github.com/libretto-pm/libretto-sub002/internal/install"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "libretto {[flags]|SUBCOMMAND...}",
	Short: "Resolve and install PHP package dependencies",

	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $COMPOSER_HOME/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(dumpAutoloadCmd)
}

var installCmd = &cobra.Command{
	Use:   "install [vendor/package:constraint...]",
	Short: "Resolve requirements and fetch every package into vendor/",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rootRequires, err := parseRequireArgs(args)
		if err != nil {
			return err
		}

		in, err := install.New(cfg, nil)
		if err != nil {
			return fmt.Errorf("initializing installer: %w", err)
		}
		defer in.Close()

		fetcher, platform, err := buildFetcherAndPlatform(cfg)
		if err != nil {
			return err
		}

		logrus.WithField("requires", len(rootRequires)).Info("resolving dependencies")
		return in.Run(cmd.Context(), fetcher, platform, rootRequires)
	},
}

var dumpAutoloadCmd = &cobra.Command{
	Use:   "dump-autoload",
	Short: "Rewrite vendor/composer/autoload_*.php (installed packages are not rediscovered, so the maps are empty)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		in, err := install.New(cfg, nil)
		if err != nil {
			return err
		}
		defer in.Close()

		empty := install.Plan{}
		return in.GenerateAutoloader(empty)
	},
}

func loadConfig() (config.Config, error) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return config.Load(configPath)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", rootCmd.CommandPath(), err)
		os.Exit(1)
	}
}
