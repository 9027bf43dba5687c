package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/loadkeeper"
)

// Config holds the evaluation context settings for CLI runs.
type Config struct {
	Game                string
	DataPath            string
	AdditionalDataPaths []string
	ActivePlugins       []string
}

var gameNames = map[string]loadkeeper.GameCode{
	"oblivion":   loadkeeper.Oblivion,
	"skyrim":     loadkeeper.Skyrim,
	"skyrimse":   loadkeeper.SkyrimSE,
	"skyrimvr":   loadkeeper.SkyrimVR,
	"fallout3":   loadkeeper.Fallout3,
	"falloutnv":  loadkeeper.FalloutNV,
	"fallout4":   loadkeeper.Fallout4,
	"fallout4vr": loadkeeper.Fallout4VR,
	"morrowind":  loadkeeper.Morrowind,
	"starfield":  loadkeeper.Starfield,
	"openmw":     loadkeeper.OpenMW,
}

// loadConfig merges CLI flags over environment over config file.
// Flags > LOADKEEPER_* environment > config file > defaults.
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("game", "skyrimse")
	v.SetDefault("data_path", ".")

	v.SetEnvPrefix("LOADKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Game:                v.GetString("game"),
		DataPath:            v.GetString("data_path"),
		AdditionalDataPaths: v.GetStringSlice("additional_data_paths"),
		ActivePlugins:       v.GetStringSlice("active_plugins"),
	}

	if gameName != "" {
		cfg.Game = gameName
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if len(extraDataPaths) > 0 {
		cfg.AdditionalDataPaths = extraDataPaths
	}
	if len(activePlugins) > 0 {
		cfg.ActivePlugins = activePlugins
	}

	return cfg, nil
}

// newState builds an evaluation State from the merged configuration.
func newState(cfg *Config) (*loadkeeper.State, error) {
	game, ok := gameNames[strings.ToLower(cfg.Game)]
	if !ok {
		return nil, fmt.Errorf("unknown game %q", cfg.Game)
	}

	s := loadkeeper.NewState(game, cfg.DataPath)
	if len(cfg.AdditionalDataPaths) > 0 {
		s.SetAdditionalDataPaths(cfg.AdditionalDataPaths)
	}
	if len(cfg.ActivePlugins) > 0 {
		s.SetActivePlugins(cfg.ActivePlugins)
	}
	return s, nil
}
