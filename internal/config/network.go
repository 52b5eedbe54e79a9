package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CommissionSchedule maps referral depth to a commission rate in basis
// points: LevelBps[0] applies at depth 1, LevelBps[1] at depth 2, and so
// on. FallbackBps applies to every depth beyond the listed levels.
type CommissionSchedule struct {
	LevelBps    []int64 `mapstructure:"levelBps"`
	FallbackBps int64   `mapstructure:"fallbackBps"`
}

func DefaultCommissionSchedule() CommissionSchedule {
	return CommissionSchedule{
		LevelBps:    []int64{500, 300, 200},
		FallbackBps: 100,
	}
}

// CommissionScheduleHolder hot-reloads the commission schedule from
// network.yml so rate changes do not require a restart. Already-created
// edges keep the rate they were written with; only new registrations
// pick up a reloaded schedule.
type CommissionScheduleHolder struct {
	current atomic.Value // holds CommissionSchedule
}

func NewCommissionScheduleHolder() (*CommissionScheduleHolder, error) {
	v := viper.New()

	v.SetConfigName("network")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/trm/config") // Volume-mounted config
	v.AddConfigPath("/etc/trm")            // System config
	v.AddConfigPath(".")                   // Current directory (dev mode)

	v.SetEnvPrefix("TRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCommissionSchedule()
		v.SetDefault("network.commission.levelBps", defaults.LevelBps)
		v.SetDefault("network.commission.fallbackBps", defaults.FallbackBps)
	}

	var schedule CommissionSchedule
	if err := v.UnmarshalKey("network.commission", &schedule); err != nil {
		return nil, err
	}
	if len(schedule.LevelBps) == 0 && schedule.FallbackBps == 0 {
		schedule = DefaultCommissionSchedule()
	}
	if err := validateCommissionSchedule(schedule); err != nil {
		return nil, err
	}

	holder := &CommissionScheduleHolder{}
	holder.current.Store(schedule)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CommissionSchedule
		if err := v.UnmarshalKey("network.commission", &updated); err != nil {
			log.Printf("[network-config] reload failed: %v", err)
			return
		}
		if err := validateCommissionSchedule(updated); err != nil {
			log.Printf("[network-config] invalid schedule ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[network-config] commission schedule reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CommissionScheduleHolder) Get() CommissionSchedule {
	return h.current.Load().(CommissionSchedule)
}

// Store replaces the schedule directly. Intended for tests.
func (h *CommissionScheduleHolder) Store(schedule CommissionSchedule) error {
	if err := validateCommissionSchedule(schedule); err != nil {
		return err
	}
	h.current.Store(schedule)
	return nil
}

func validateCommissionSchedule(schedule CommissionSchedule) error {
	for _, bps := range schedule.LevelBps {
		if bps < 0 || bps > 10000 {
			return errors.New("network.commission.levelBps entries must be within 0..10000")
		}
	}
	if schedule.FallbackBps < 0 || schedule.FallbackBps > 10000 {
		return errors.New("network.commission.fallbackBps must be within 0..10000")
	}
	return nil
}
