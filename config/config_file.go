package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration file.
type Format int

// Supported configuration encodings.
const (
	TOML Format = iota
	YAML
)

// FormatOf guesses the format from a file name's extension.
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return TOML
	}
}

// FromFile loads a configuration from a file, failures are recorded as
// errors on the Config and reported by Validate.
func (c *Config) FromFile(filename string) *Config {
	file, err := os.Open(filename)
	if err != nil {
		c.protect.Lock()
		c.filename = filename
		c.errors.addError(fmtErrInvalidFile, err)
		c.protect.Unlock()
		return c
	}
	defer file.Close()

	c.FromReader(file, FormatOf(filename))

	c.protect.Lock()
	c.filename = filename
	c.protect.Unlock()
	return c
}

// FromString loads a toml configuration from a string.
func (c *Config) FromString(config string) *Config {
	return c.FromReader(strings.NewReader(config), TOML)
}

// FromReader loads a configuration from a reader.
func (c *Config) FromReader(reader io.Reader, format Format) *Config {
	c.protect.Lock()
	defer c.protect.Unlock()

	switch format {
	case YAML:
		dec := yaml.NewDecoder(reader)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && err != io.EOF {
			c.errors.addError(fmtErrInvalidFile, err)
		}
	default:
		md, err := toml.DecodeReader(reader, c)
		if err != nil {
			c.errors.addError(fmtErrInvalidFile, err)
			return c
		}
		for _, key := range md.Undecoded() {
			c.errors.addError(fmtErrUnknownKey, key.String())
		}
	}

	return c
}

// ToWriter writes the configuration out as toml.
func (c *Config) ToWriter(writer io.Writer) error {
	c.protect.RLock()
	defer c.protect.RUnlock()

	return toml.NewEncoder(writer).Encode(c)
}

// String renders the configuration as toml.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := c.ToWriter(&buf); err != nil {
		return err.Error()
	}
	return buf.String()
}
