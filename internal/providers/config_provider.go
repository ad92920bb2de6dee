package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"pickd/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "PICKD_LOG_LEVEL")
	viper.BindEnv("picker.lockTimeout", "PICKD_LOCK_TIMEOUT")
	viper.BindEnv("picker.sweepInterval", "PICKD_SWEEP_INTERVAL")
	viper.BindEnv("persistence.saveInterval", "PICKD_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "PICKD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "PICKD_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "ParticipantPickerDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
