package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PayoutConfig holds the operational payout policy knobs. It is kept separate
// from Config because operators tune it at runtime via a mounted file.
type PayoutConfig struct {
	// DefaultHourlyRate applies when neither a stored payout record nor a
	// teacher base rate supplies one.
	DefaultHourlyRate float64 `mapstructure:"defaultHourlyRate"`
	// MaxHourlyRate caps admin rate overrides. Zero disables the cap.
	MaxHourlyRate float64 `mapstructure:"maxHourlyRate"`
}

type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

// NewPayoutConfigHolder loads payout policy from skolar.yml (if present) and
// hot-reloads it on change. Environment defaults fill the gaps.
func NewPayoutConfigHolder(cfg Config) (*PayoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("skolar")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/skolar/config")
	v.AddConfigPath("/etc/skolar")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SKOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("payout.defaultHourlyRate", cfg.DefaultHourlyRate)
	v.SetDefault("payout.maxHourlyRate", 0)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var payout PayoutConfig
	if err := v.UnmarshalKey("payout", &payout); err != nil {
		return nil, err
	}
	if err := validatePayoutConfig(payout); err != nil {
		return nil, err
	}

	holder := &PayoutConfigHolder{}
	holder.current.Store(payout)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutConfig
		if err := v.UnmarshalKey("payout", &updated); err != nil {
			log.Printf("[payout-config] reload failed: %v", err)
			return
		}
		if err := validatePayoutConfig(updated); err != nil {
			log.Printf("[payout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[payout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPayoutConfigHolder returns a holder pinned to the given policy.
// Used by tests and tooling that must not touch the filesystem.
func NewStaticPayoutConfigHolder(payout PayoutConfig) *PayoutConfigHolder {
	holder := &PayoutConfigHolder{}
	holder.current.Store(payout)
	return holder
}

func (h *PayoutConfigHolder) Get() PayoutConfig {
	return h.current.Load().(PayoutConfig)
}

func validatePayoutConfig(cfg PayoutConfig) error {
	if cfg.DefaultHourlyRate <= 0 {
		return errors.New("payout.defaultHourlyRate must be positive")
	}
	if cfg.MaxHourlyRate < 0 {
		return errors.New("payout.maxHourlyRate cannot be negative")
	}
	if cfg.MaxHourlyRate > 0 && cfg.MaxHourlyRate < cfg.DefaultHourlyRate {
		return errors.New("payout.maxHourlyRate below defaultHourlyRate")
	}
	return nil
}
