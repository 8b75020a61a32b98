package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestNewLogger_Defaults(t *testing.T) {
	v := viper.New()
	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger with defaults: %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger returned nil logger")
	}
	_ = logger.Sync()
}

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			v := viper.New()
			v.Set("logging.level", level)
			if _, err := NewLogger(v); err != nil {
				t.Errorf("NewLogger(level=%s): %v", level, err)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "verbose")
	if _, err := NewLogger(v); err == nil {
		t.Error("NewLogger(level=verbose) succeeded, want error")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.format", "xml")
	if _, err := NewLogger(v); err == nil {
		t.Error("NewLogger(format=xml) succeeded, want error")
	}
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.format", "console")
	if _, err := NewLogger(v); err != nil {
		t.Errorf("NewLogger(format=console): %v", err)
	}
}
