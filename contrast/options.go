package contrast

import (
	"log"

	"github.com/google/uuid"
)

type options struct {
	logger *log.Logger
	passID func() string
}

// Option customises a Scanner or Repairer.
type Option func(*options)

// WithLogger routes skip and fix messages to logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPassID overrides how a scan pass names its handles.
func WithPassID(fn func() string) Option {
	return func(o *options) { o.passID = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: log.Default(),
		passID: func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.passID == nil {
		o.passID = func() string { return uuid.NewString()[:8] }
	}
	return o
}
