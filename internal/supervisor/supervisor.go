// Package supervisor runs the long-lived parts of the server under a
// suture supervisor so a crashed service is restarted with backoff.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/kdimtricp/verifai/internal/logging"
)

type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// New returns a root supervisor whose lifecycle events go to the global
// zerolog logger.
func New(name string, cfg Config) *suture.Supervisor {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	return suture.New(name, suture.Spec{
		EventHook:        LogEvent,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

// LogEvent writes a suture event as one structured log line. Panics and
// backoff are errors, failures are warnings, the rest is info.
func LogEvent(e suture.Event) {
	ev := logging.Info()
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeBackoff:
		ev = logging.Error()
	case suture.EventTypeServiceTerminate, suture.EventTypeStopTimeout:
		ev = logging.Warn()
	}
	ev.Fields(e.Map()).Msg(e.String())
}

// Serve runs sup until ctx is canceled and reports services that did not
// stop in time.
func Serve(ctx context.Context, sup *suture.Supervisor) error {
	err := sup.Serve(ctx)
	if report, rerr := sup.UnstoppedServiceReport(); rerr == nil {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("service did not stop before shutdown timeout")
		}
	}
	return err
}
