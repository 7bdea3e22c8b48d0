package bot

import (
	"context"

	"github.com/aarondl/triggerbot/config"
	"gopkg.in/inconshreveable/log15.v2"
)

// Run makes a very typical bot. The configuration is read from filename and
// decides where the log goes. cb is called before connecting to allow
// registration of plugins, it may be nil. Does NOT return until ctx ends or
// the bot could not be created.
func Run(ctx context.Context, filename string, cb func(b *Bot)) error {
	conf := config.New().FromFile(filename)

	logger := log15.New()
	handler, err := conf.LogHandler()
	if err != nil {
		return err
	}
	logger.SetHandler(handler)

	b, err := New(conf, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if cb != nil {
		cb(b)
	}

	b.Info("Starting", "config", conf.Filename())
	err = b.Run(ctx)
	b.Info("Shutting down...")
	return err
}
