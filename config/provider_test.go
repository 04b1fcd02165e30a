package config

import (
	"errors"
	"sync"
	"testing"

	"github.com/goclaw/willing/pkg/willing"
)

func TestWillingConfig_ToTuning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Willing.InterestAmplifier = 1.5
	cfg.Willing.DownFrequencyGroups = []string{"g1", "", "g2"}

	tuning := cfg.Willing.ToTuning()

	if tuning.InterestAmplifier != 1.5 {
		t.Errorf("expected interest amplifier 1.5, got %v", tuning.InterestAmplifier)
	}
	if tuning.DownFrequencyRate != 3 {
		t.Errorf("expected rate 3, got %v", tuning.DownFrequencyRate)
	}
	if !tuning.IsDownFrequency("g1") || !tuning.IsDownFrequency("g2") {
		t.Error("expected g1 and g2 to be throttled")
	}
	if tuning.IsDownFrequency("") {
		t.Error("empty group id must never be throttled")
	}
	if len(tuning.DownFrequencyGroups) != 2 {
		t.Errorf("expected 2 groups, got %d", len(tuning.DownFrequencyGroups))
	}
}

func TestProvider(t *testing.T) {
	cfg := DefaultConfig()
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if got := p.Tuning().WillingnessAmplifier; got != 1.0 {
		t.Errorf("expected amplifier 1, got %v", got)
	}

	next := DefaultConfig()
	next.Willing.WillingnessAmplifier = 2
	if err := p.Update(next); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := p.Tuning().WillingnessAmplifier; got != 2 {
		t.Errorf("expected amplifier 2 after update, got %v", got)
	}

	bad := DefaultConfig()
	bad.Willing.DownFrequencyRate = 0
	err = p.Update(bad)
	if !errors.Is(err, willing.ErrInvalidTuning) {
		t.Errorf("expected ErrInvalidTuning, got %v", err)
	}
	if got := p.Tuning().WillingnessAmplifier; got != 2 {
		t.Errorf("failed update must keep previous tuning, got %v", got)
	}

	if err := p.Update(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestProvider_ZeroValue(t *testing.T) {
	var p Provider
	if got := p.Tuning(); got.DownFrequencyRate != willing.DefaultTuning().DownFrequencyRate {
		t.Errorf("zero provider should serve defaults, got %+v", got)
	}
}

func TestProvider_ConcurrentUpdates(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			cfg := DefaultConfig()
			cfg.Willing.DownFrequencyRate = float64(i + 1)
			_ = p.Update(cfg)
		}(i)
		go func() {
			defer wg.Done()
			if err := p.Tuning().Validate(); err != nil {
				t.Errorf("served invalid tuning: %v", err)
			}
		}()
	}
	wg.Wait()
}
