package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/shalu066900/pykms/internal/logger"
)

// Watch re-reads configPath on every write and invokes onChange with
// the newly validated Config, following the teacher's documented use of
// fsnotify through viper.WatchConfig for live config reload. An invalid
// rewrite is logged and ignored — the last good Config keeps running.
//
// Watch returns once viper's internal fsnotify watcher is armed; it
// does not block.
func Watch(configPath string, onChange func(*Config)) error {
	if configPath == "" {
		return fmt.Errorf("config: watch requires a non-empty config path")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: watch: initial read of %s: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("configuration file changed, reloading", "path", e.Name)
		cfg, err := Load(configPath)
		if err != nil {
			logger.Warn("reloaded configuration is invalid, keeping previous configuration", logger.Err(err))
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
