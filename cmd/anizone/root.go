package main

import (
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Pal-droid/anizone/internal/appflow"
	"github.com/Pal-droid/anizone/internal/config"
	"github.com/Pal-droid/anizone/internal/util"
	"github.com/Pal-droid/anizone/internal/version"
)

var (
	v          = config.New()
	configFile string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a config file")

	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	lo.Must0(v.BindPFlag(config.KeyDebug, rootCmd.PersistentFlags().Lookup("debug")))

	rootCmd.PersistentFlags().String("index", "", "Base URL of the reconciliation index")
	lo.Must0(v.BindPFlag(config.KeyIndexURL, rootCmd.PersistentFlags().Lookup("index")))

	rootCmd.AddCommand(serveCmd, searchCmd, scheduleCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:          "anizone",
	Short:        "Anime and manga aggregator for AnimeWorld, AnimeSaturn and MangaWorld",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.ReadFile(v, configFile)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		version.ShowVersion(cmd.OutOrStdout())
	},
}

// loadApp resolves the configuration, sets up logging and wires the app.
func loadApp(vp *viper.Viper) (*appflow.App, error) {
	cfg, err := config.Load(vp)
	if err != nil {
		return nil, err
	}
	util.SetDebugMode(cfg.Debug)
	util.InitLoggerTo(os.Stderr, cfg.JSONLogs)
	return appflow.New(cfg), nil
}
