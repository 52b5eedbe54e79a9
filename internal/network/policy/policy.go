package policy

import (
	"github.com/trmhq/trm/internal/config"
	"github.com/trmhq/trm/internal/network/domain"
)

// Schedule resolves commission rates from the hot-reloadable schedule held
// by the config package.
type Schedule struct {
	holder *config.CommissionScheduleHolder
}

func NewSchedule(holder *config.CommissionScheduleHolder) domain.CommissionPolicy {
	return &Schedule{holder: holder}
}

// RateBPS returns the rate for a proper-ancestor depth. Depths beyond the
// configured levels earn the fallback rate; depth 0 earns nothing.
func (s *Schedule) RateBPS(depth int) int64 {
	if depth < 1 {
		return 0
	}

	schedule := config.DefaultCommissionSchedule()
	if s != nil && s.holder != nil {
		schedule = s.holder.Get()
	}

	if depth <= len(schedule.LevelBps) {
		return schedule.LevelBps[depth-1]
	}
	return schedule.FallbackBps
}
