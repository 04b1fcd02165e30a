package config

import (
	"fmt"
	"sync/atomic"

	"github.com/goclaw/willing/pkg/willing"
)

// ToTuning converts the willing section into scorer tuning values.
func (w WillingConfig) ToTuning() willing.Tuning {
	return willing.Tuning{
		InterestAmplifier:    w.InterestAmplifier,
		WillingnessAmplifier: w.WillingnessAmplifier,
		DownFrequencyGroups:  willing.NewGroupSet(w.DownFrequencyGroups...),
		DownFrequencyRate:    w.DownFrequencyRate,
	}
}

// Provider serves the current reply tuning. It is safe for concurrent use and
// can be refreshed from a Watcher without restarting the daemon.
type Provider struct {
	current atomic.Pointer[willing.Tuning]
}

// NewProvider creates a provider from a loaded configuration.
func NewProvider(cfg *Config) (*Provider, error) {
	p := &Provider{}
	if err := p.Update(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Tuning returns the current tuning. The group set is shared and must not be
// modified by callers.
func (p *Provider) Tuning() willing.Tuning {
	if t := p.current.Load(); t != nil {
		return *t
	}
	return willing.DefaultTuning()
}

// Update swaps in the tuning from cfg after validating it. On error the
// previous tuning stays active.
func (p *Provider) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	t := cfg.Willing.ToTuning()
	if err := t.Validate(); err != nil {
		return err
	}
	p.current.Store(&t)
	return nil
}
