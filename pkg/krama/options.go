package krama

import (
	"krama/pkg/cache"
	"krama/pkg/fingerprint"
	"krama/pkg/history"
)

// Option is a functional option for configuring a Pipeline.
type Option interface {
	apply(*Pipeline)
}

type optionFunc func(*Pipeline)

func (f optionFunc) apply(p *Pipeline) {
	f(p)
}

// WithStore sets the cache store consulted by intercepted calls.
// Without a store, stages execute but nothing is memoized.
func WithStore(store cache.Store) Option {
	return optionFunc(func(p *Pipeline) {
		p.store = store
	})
}

// WithLedger sets the history ledger that run summaries are appended to.
// Without a ledger, runs are not recorded.
func WithLedger(ledger *history.Ledger) Option {
	return optionFunc(func(p *Pipeline) {
		p.ledger = ledger
	})
}

// WithObserver sets the observer notified of execution events.
func WithObserver(obs Observer) Option {
	return optionFunc(func(p *Pipeline) {
		p.obs = obs
	})
}

// WithFingerprinter overrides the fingerprinter. Mainly useful for sharing
// one structural-digest cache across pipelines.
func WithFingerprinter(fp *fingerprint.Fingerprinter) Option {
	return optionFunc(func(p *Pipeline) {
		p.fp = fp
	})
}

// WithWarnNotCacheable controls whether a call that cannot be fingerprinted
// or serialized is reported through the observer as a warning. The default
// is silent fallback to normal execution.
func WithWarnNotCacheable(warn bool) Option {
	return optionFunc(func(p *Pipeline) {
		p.warnNotCacheable = warn
	})
}
