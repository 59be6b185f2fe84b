// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"go.yaml.in/yaml/v4"
)

// Config holds connection and client settings. Values come from the config
// file and are overridden by explicitly set flags.
type Config struct {
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud"`
	URL         string   `yaml:"url"`
	Username    string   `yaml:"username"`
	NoSSLVerify bool     `yaml:"no_ssl_verify"`
	Timeout     Duration `yaml:"timeout"`
	StrictCRC   bool     `yaml:"strict_crc"`
	Debug       bool     `yaml:"debug"`
	Capture     string   `yaml:"capture"`
}

// DefaultConfig returns the settings used when neither file nor flags set a value.
func DefaultConfig() Config {
	return Config{
		Baud:    115200,
		Timeout: Duration{storm32.DefaultTimeout},
	}
}

// DefaultConfigPath returns ~/.config/stormctl/stormctl.yml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "stormctl", "stormctl.yml") // Does not follow XDG..
}

// LoadConfig reads path on top of DefaultConfig. A missing file is only an
// error when required is set. The result is not validated since flags may
// still override it; call Validate once they are applied.
func LoadConfig(path string, required bool) (Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	defer f.Close()

	codec := yaml.NewDecoder(f)
	err = codec.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// Validate checks values a decoder cannot reject.
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud: must be positive, got %d", c.Baud)
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout: must be positive, got %s", c.Timeout)
	}
	if c.Port != "" && c.URL != "" {
		return errors.New("port and url are mutually exclusive")
	}
	return nil
}

// Override copies the fields of flags whose flag name was set on the command line.
// A transport selected by flag replaces the one from the file.
func (c *Config) Override(flags Config, changed func(name string) bool) {
	if changed("port") {
		c.Port = flags.Port
		if !changed("url") {
			c.URL = ""
		}
	}
	if changed("baud") {
		c.Baud = flags.Baud
	}
	if changed("url") {
		c.URL = flags.URL
		if !changed("port") {
			c.Port = ""
		}
	}
	if changed("username") {
		c.Username = flags.Username
	}
	if changed("no-ssl-verify") {
		c.NoSSLVerify = flags.NoSSLVerify
	}
	if changed("timeout") {
		c.Timeout = flags.Timeout
	}
	if changed("strict-crc") {
		c.StrictCRC = flags.StrictCRC
	}
	if changed("debug") {
		c.Debug = flags.Debug
	}
	if changed("capture") {
		c.Capture = flags.Capture
	}
}

// ClientOptions translates the settings into storm32 client options.
func (c Config) ClientOptions() []storm32.Option {
	policy := storm32.ChecksumDiagnostic
	if c.StrictCRC {
		policy = storm32.ChecksumStrict
	}
	return []storm32.Option{
		storm32.WithTimeout(c.Timeout.Duration),
		storm32.WithChecksumPolicy(policy),
	}
}

//
//
//

// Duration is a time.Duration written as "250ms" in config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var str string
	err := json.Unmarshal(data, &str)
	if err != nil {
		return err
	}

	d.Duration, err = time.ParseDuration(str)
	return err
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	err := value.Decode(&str)
	if err != nil {
		return err
	}

	if str == "" {
		return nil
	}

	d.Duration, err = time.ParseDuration(str)
	return err
}
