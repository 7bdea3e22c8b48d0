package config

import (
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/inconshreveable/log15.v2"
)

// errList is an array of errors.
type errList []error

// addError builds an error object and appends it to this instances errors.
func (l *errList) addError(format string, args ...interface{}) {
	*l = append(*l, fmt.Errorf(format, args...))
}

// Errors returns the errors encountered during loading and validation.
func (c *Config) Errors() []error {
	c.protect.RLock()
	defer c.protect.RUnlock()

	ers := make([]error, len(c.errors))
	copy(ers, c.errors)
	return ers
}

// Validate checks to see if the configuration is valid. Errors from loading
// the file are kept, validation errors are added to them. See DisplayErrors
// for a display helper.
func (c *Config) Validate() bool {
	c.protect.Lock()
	defer c.protect.Unlock()

	ers := make(errList, 0, len(c.errors))
	for _, e := range c.errors {
		if !strings.HasPrefix(e.Error(), "config(") {
			ers = append(ers, e)
		}
	}

	c.validateRequired(&ers)
	c.validateValues(&ers)

	c.errors = ers
	return len(ers) == 0
}

// validateRequired checks that all required fields are present.
func (c *Config) validateRequired(ers *errList) {
	name := c.name()

	if len(c.Servers) == 0 {
		ers.addError(fmtErrMissing, name, "servers")
	}
	if len(c.Nicks) == 0 {
		ers.addError(fmtErrMissing, name, "nicks")
	}
}

// validateValues checks the given values make sense.
func (c *Config) validateValues(ers *errList) {
	name := c.name()

	for _, s := range c.Servers {
		if len(s) == 0 || strings.ContainsAny(s, " \t") {
			ers.addError(fmtErrInvalid, name, "server", s)
		}
	}
	for _, n := range c.Nicks {
		if len(n) == 0 || strings.ContainsAny(n, " ,*?!@:#") {
			ers.addError(fmtErrInvalid, name, "nick", n)
		}
	}
	for _, ch := range c.Channels {
		if !strings.HasPrefix(ch, "#") || strings.ContainsAny(ch, " ,") {
			ers.addError(fmtErrInvalid, name, "channel", ch)
		}
	}
	for _, p := range c.Prefixes {
		if len(p) == 0 || strings.ContainsAny(p, " \t") {
			ers.addError(fmtErrInvalid, name, "prefix", fmt.Sprintf("%q", p))
		}
	}
	if strings.ContainsAny(c.Username, " @") {
		ers.addError(fmtErrInvalid, name, "username", c.Username)
	}

	if len(c.Proxy) > 0 {
		if u, err := url.Parse(c.Proxy); err != nil || len(u.Scheme) == 0 ||
			len(u.Host) == 0 {
			ers.addError(fmtErrInvalid, name, "proxy", c.Proxy)
		}
	}

	if c.FloodBurst < 0 {
		ers.addError(fmtErrInvalid, name, "floodburst", c.FloodBurst)
	}
	if c.PingFrequency > 0 && c.ActivityTimeout > 0 &&
		c.ActivityTimeout <= c.PingFrequency {
		ers.addError(fmtErrInvalid, name, "activitytimeout",
			fmt.Sprintf("%v (must exceed pingfrequency)", c.ActivityTimeout))
	}

	if len(c.LogLevel) > 0 {
		if _, err := log15.LvlFromString(c.LogLevel); err != nil {
			ers.addError(fmtErrInvalid, name, "loglevel", c.LogLevel)
		}
	}
}

func (c *Config) name() string {
	if len(c.Network) > 0 {
		return c.Network
	}
	return defaultNetwork
}

// DisplayErrors logs every error of the configuration.
func (c *Config) DisplayErrors(logger log15.Logger) {
	c.protect.RLock()
	defer c.protect.RUnlock()

	for _, e := range c.errors {
		logger.Error(e.Error())
	}
}
