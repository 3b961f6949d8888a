package main

import (
	"fmt"
	"io"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/application/events"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/ingestion"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/retention"
	"gopkg.in/yaml.v2"
)

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	controlPort
	enableTracing

	configurationFile
	dataDir
	legacyEngine
	logLevel
	debugMode
)

type appConfig struct {
	Retention     retention.Config      `yaml:"retention"`
	Ingestion     ingestion.Config      `yaml:"ingestion"`
	FanOut        int                   `yaml:"fanOut"`
	Notifications []events.Notification `yaml:"notifications"`
}

func defaultConfig() appConfig {
	return appConfig{
		Retention: retention.Config{
			Interval:            time.Hour,
			KeepFor:             30 * 24 * time.Hour,
			CompactionThreshold: 5_000_000,
		},
		Ingestion: ingestion.Config{
			SaveInterval: 5 * time.Minute,
		},
		FanOut: 4,
	}
}

// parseExternalConfigFile reads the yaml configuration on top of the defaults. Keys missing
// from the file keep their default value.
func parseExternalConfigFile(cfgFile io.ReadCloser) (*appConfig, error) {
	defer cfgFile.Close()

	b, err := io.ReadAll(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.FanOut < 2 {
		return nil, fmt.Errorf("fanOut must be at least 2, got %d", cfg.FanOut)
	}

	return &cfg, nil
}

func (c appConfig) events() *events.Config {
	return &events.Config{Notifications: c.Notifications}
}
