package utils

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/quantarc/tickstore/utils/log"
)

// TickstoreConfig is the process configuration for the CLI. The engine
// itself takes everything through constructors; this only configures
// the tooling around it.
type TickstoreConfig struct {
	RootDirectory string
	Compression   bool
	DefaultFormat string
	PriceStep     float64
}

// Parse fills the config from yaml bytes, applying defaults and
// validating the format selection.
func (c *TickstoreConfig) Parse(data []byte) error {
	var aux struct {
		RootDirectory string  `yaml:"root_directory"`
		LogLevel      string  `yaml:"log_level"`
		Compression   bool    `yaml:"compression"`
		DefaultFormat string  `yaml:"default_format"`
		PriceStep     float64 `yaml:"price_step"`
	}
	if err := yaml.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "parse config")
	}

	if aux.RootDirectory == "" {
		return errors.New("invalid root directory")
	}
	c.RootDirectory = aux.RootDirectory
	c.Compression = aux.Compression
	c.PriceStep = aux.PriceStep
	if c.PriceStep == 0 {
		c.PriceStep = 0.01
	}

	switch strings.ToLower(aux.DefaultFormat) {
	case "", "csv", "text":
		c.DefaultFormat = "csv"
	case "bin", "binary":
		c.DefaultFormat = "binary"
	default:
		return errors.Errorf("unknown default_format %q", aux.DefaultFormat)
	}

	switch strings.ToLower(aux.LogLevel) {
	case "debug":
		log.SetLevel(log.DEBUG)
	case "", "info":
		log.SetLevel(log.INFO)
	case "warning", "warn":
		log.SetLevel(log.WARNING)
	case "error":
		log.SetLevel(log.ERROR)
	default:
		return errors.Errorf("unknown log_level %q", aux.LogLevel)
	}
	return nil
}
