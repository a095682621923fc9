// Package config loads the smpmgr tool configuration file : default
// transport settings and named device profiles, INI formatted.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	DefaultBaudRate  = 115200
	DefaultTimeoutMs = 2000
	DefaultFrameSize = 512
)

// Device is a named connection profile, e.g. [device.nrf52dk]
type Device struct {
	Port        string
	USBSelector string
	BaudRate    int
}

// Config is the loaded tool configuration. Settings missing from the
// file take the package defaults; values given in the file are used
// as they are.
type Config struct {
	Port        string
	USBSelector string
	BaudRate    int
	TimeoutMs   int
	FrameSize   int
	Devices     map[string]Device
}

// Default returns the built in configuration
func Default() *Config {
	return &Config{
		BaudRate:  DefaultBaudRate,
		TimeoutMs: DefaultTimeoutMs,
		FrameSize: DefaultFrameSize,
		Devices:   map[string]Device{},
	}
}

// Load reads the configuration file at path. A missing file is not an
// error and yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration %v : %w", path, err)
	}

	serial := file.Section("serial")
	cfg.Port = serial.Key("port").String()
	cfg.USBSelector = serial.Key("usb_selector").String()
	cfg.BaudRate = serial.Key("baud").MustInt(DefaultBaudRate)

	transport := file.Section("transport")
	cfg.TimeoutMs = transport.Key("timeout_ms").MustInt(DefaultTimeoutMs)
	cfg.FrameSize = transport.Key("frame_size").MustInt(DefaultFrameSize)

	for _, section := range file.ChildSections("device") {
		name := strings.TrimPrefix(section.Name(), "device.")
		cfg.Devices[name] = Device{
			Port:        section.Key("port").String(),
			USBSelector: section.Key("usb_selector").String(),
			BaudRate:    section.Key("baud").MustInt(cfg.BaudRate),
		}
	}
	return cfg, nil
}

// Device resolves a profile by name
func (c *Config) Device(name string) (Device, error) {
	dev, ok := c.Devices[name]
	if !ok {
		return Device{}, fmt.Errorf("no device profile named %q", name)
	}
	return dev, nil
}
