package config

import (
	"os"
	"time"

	"github.com/aarondl/triggerbot/inet"
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
	"gopkg.in/inconshreveable/log15.v2"
)

// ServerPassword returns the server password. When a keyring service is
// configured the password is looked up there under the network name, and
// the password from the file is the fallback when the keyring has none.
func (c *Config) ServerPassword() (string, error) {
	c.protect.RLock()
	service, network, password := c.Keyring, c.name(), c.Password
	c.protect.RUnlock()

	if len(service) == 0 {
		return password, nil
	}

	secret, err := keyring.Get(service, network)
	switch {
	case err == nil:
		return secret, nil
	case errors.Cause(err) == keyring.ErrNotFound:
		return password, nil
	default:
		return "", errors.Wrapf(err, "config(%v): keyring lookup", network)
	}
}

// StorePassword saves the server password in the configured keyring.
func (c *Config) StorePassword(password string) error {
	c.protect.RLock()
	service, network := c.Keyring, c.name()
	c.protect.RUnlock()

	if len(service) == 0 {
		return errors.Errorf(fmtErrMissing, network, "keyring")
	}
	return errors.Wrapf(keyring.Set(service, network, password),
		"config(%v): keyring store", network)
}

// ConnOptions converts the configuration into connection options. Defaults
// should have been applied.
func (c *Config) ConnOptions() (inet.Options, error) {
	password, err := c.ServerPassword()
	if err != nil {
		return inet.Options{}, err
	}

	c.protect.RLock()
	defer c.protect.RUnlock()

	opts := inet.Options{
		Network:         c.name(),
		Servers:         cloneStrings(c.Servers),
		Port:            c.Port,
		TLS:             c.TLS,
		NoVerifyCert:    c.NoVerifyCert,
		Proxy:           c.Proxy,
		Nicks:           cloneStrings(c.Nicks),
		Username:        c.Username,
		Realname:        c.Realname,
		Password:        password,
		ReconnectDelay:  time.Duration(c.ReconnectTimeout) * time.Second,
		PollTimeout:     time.Duration(c.PollTimeout) * time.Millisecond,
		FloodRate:       c.FloodRate,
		FloodBurst:      c.FloodBurst,
		PingFrequency:   time.Duration(c.PingFrequency) * time.Second,
		ActivityTimeout: time.Duration(c.ActivityTimeout) * time.Second,
	}
	if opts.FloodRate < 0 {
		opts.FloodRate = 0
	}

	return opts, nil
}

// LogHandler builds the log handler described by loglevel and logfile.
// Without a logfile the log goes to stdout.
func (c *Config) LogHandler() (log15.Handler, error) {
	c.protect.RLock()
	level, file, network := c.LogLevel, c.LogFile, c.name()
	c.protect.RUnlock()

	if len(level) == 0 {
		level = defaultLogLevel
	}
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return nil, errors.Wrapf(err, fmtErrInvalid, network, "loglevel", level)
	}

	var handler log15.Handler
	if len(file) > 0 {
		handler, err = log15.FileHandler(file, log15.LogfmtFormat())
		if err != nil {
			return nil, errors.Wrap(err, "config: open logfile")
		}
	} else {
		handler = log15.StreamHandler(os.Stdout, log15.TerminalFormat())
	}

	return log15.LvlFilterHandler(lvl, handler), nil
}
