package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/harveysanders/sidegrade/smartsign/scroll"
	"github.com/spf13/viper"
)

// Sources the simulator can fetch text from.
const (
	SourceHTTP = "http"
	SourceFile = "file"
	SourceMQTT = "mqtt"
)

// Config is the simulator configuration, read from flags, the environment
// (SIDEGRADE_*) and an optional YAML file.
type Config struct {
	Width      int           `mapstructure:"width"`
	Rows       int           `mapstructure:"rows"`
	Step       int           `mapstructure:"step"`
	TailMargin int           `mapstructure:"tail_margin"`
	Tick       time.Duration `mapstructure:"tick"`

	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`

	Source string `mapstructure:"source"`
	URL    string `mapstructure:"url"`
	File   string `mapstructure:"file"`
	Broker string `mapstructure:"broker"`
	Topic  string `mapstructure:"topic"`

	Log      string `mapstructure:"log"`
	Headless bool   `mapstructure:"headless"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	sc := scroll.DefaultConfig()
	return Config{
		Width:           sc.Width,
		Rows:            sc.Rows,
		Step:            sc.Step,
		TailMargin:      sc.TailMargin,
		Tick:            sc.Tick,
		RefreshInterval: 30 * time.Second,
		FetchTimeout:    10 * time.Second,
		Source:          SourceHTTP,
		URL:             "http://127.0.0.1:8080/",
		File:            "sign.txt",
		Broker:          "127.0.0.1:1883",
		Topic:           "sidegrade/sign",
	}
}

// setDefaults registers Defaults with v.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("width", d.Width)
	v.SetDefault("rows", d.Rows)
	v.SetDefault("step", d.Step)
	v.SetDefault("tail_margin", d.TailMargin)
	v.SetDefault("tick", d.Tick)
	v.SetDefault("refresh_interval", d.RefreshInterval)
	v.SetDefault("fetch_timeout", d.FetchTimeout)
	v.SetDefault("source", d.Source)
	v.SetDefault("url", d.URL)
	v.SetDefault("file", d.File)
	v.SetDefault("broker", d.Broker)
	v.SetDefault("topic", d.Topic)
	v.SetDefault("log", d.Log)
	v.SetDefault("headless", d.Headless)
}

// loadConfig reads cfgFile (or ./.sidegrade.yaml if present) into a Config.
// A missing default file is not an error.
func loadConfig(v *viper.Viper, cfgFile string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("SIDEGRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".sidegrade")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.validate()
}

// Scroll returns the renderer settings.
func (c Config) Scroll() scroll.Config {
	return scroll.Config{
		Width:      c.Width,
		Rows:       c.Rows,
		Step:       c.Step,
		TailMargin: c.TailMargin,
		Tick:       c.Tick,
	}
}

func (c Config) validate() error {
	if err := c.Scroll().Validate(); err != nil {
		return err
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	switch c.Source {
	case SourceHTTP:
		if c.URL == "" {
			return fmt.Errorf("source %q needs url", c.Source)
		}
	case SourceFile:
		if c.File == "" {
			return fmt.Errorf("source %q needs file", c.Source)
		}
	case SourceMQTT:
		if c.Broker == "" || c.Topic == "" {
			return fmt.Errorf("source %q needs broker and topic", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q (want http, file or mqtt)", c.Source)
	}
	return nil
}
