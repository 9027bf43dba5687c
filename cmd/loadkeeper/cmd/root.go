package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFile     string
	gameName       string
	dataPath       string
	extraDataPaths []string
	activePlugins  []string
)

var rootCmd = &cobra.Command{
	Use:   "loadkeeper",
	Short: "loadkeeper condition interpreter",
	Long:  `loadkeeper parses and evaluates load-order metadata conditions against a local game installation.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&gameName, "game", "", "game name (oblivion, skyrim, skyrimse, skyrimvr, fallout3, falloutnv, fallout4, fallout4vr, morrowind, starfield, openmw)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "path to the game's data directory")
	rootCmd.PersistentFlags().StringSliceVar(&extraDataPaths, "additional-data-path", nil, "additional data directory, highest precedence first, lowest first for openmw (repeatable)")
	rootCmd.PersistentFlags().StringSliceVar(&activePlugins, "active", nil, "active plugin filename (repeatable)")
}

func Execute() error {
	return rootCmd.Execute()
}
