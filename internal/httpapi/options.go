package httpapi

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/submerge/internal/aggregate"
	"github.com/John-Robertt/submerge/internal/config"
)

// Options controls HTTP API runtime behavior.
type Options struct {
	// ConvertTimeout bounds a single aggregation request, all sources
	// included. Sources still pending when it fires are reported as failed.
	ConvertTimeout time.Duration

	// Config supplies fetch, engine and output settings. Nil means
	// config.Default().
	Config *config.Config

	// Fetcher replaces the HTTP fetch client; tests use it.
	Fetcher aggregate.Fetcher

	Logger logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = o.Config.HTTP.ConvertTimeout
	}
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = config.DefaultConvertTimeout
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}
