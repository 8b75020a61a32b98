package watch

import "github.com/HerbHall/netglance/pkg/plugin"

// Config is the file-level configuration of the watch module. The
// probe interval, timeout and enable flag are runtime settings stored
// by the topology module; only process-wide tuning lives here.
type Config struct {
	// Concurrency bounds how many devices are probed at once.
	Concurrency int `mapstructure:"concurrency"`
}

func defaultConfig() Config {
	return Config{Concurrency: 16}
}

func loadConfig(pc plugin.Config) Config {
	cfg := defaultConfig()
	if pc == nil {
		return cfg
	}
	if err := pc.Unmarshal(&cfg); err != nil || cfg.Concurrency < 1 {
		return defaultConfig()
	}
	return cfg
}
