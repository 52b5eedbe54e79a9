package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trmhq/trm/internal/config"
)

func TestRateBPSDefaults(t *testing.T) {
	schedule := NewSchedule(nil)

	assert.Equal(t, int64(0), schedule.RateBPS(0))
	assert.Equal(t, int64(500), schedule.RateBPS(1))
	assert.Equal(t, int64(300), schedule.RateBPS(2))
	assert.Equal(t, int64(200), schedule.RateBPS(3))
	assert.Equal(t, int64(100), schedule.RateBPS(4))
	assert.Equal(t, int64(100), schedule.RateBPS(42))
}

func TestRateBPSFromHolder(t *testing.T) {
	holder := &config.CommissionScheduleHolder{}
	holder.Store(config.CommissionSchedule{
		LevelBps:    []int64{1000, 250},
		FallbackBps: 50,
	})

	schedule := NewSchedule(holder)

	assert.Equal(t, int64(1000), schedule.RateBPS(1))
	assert.Equal(t, int64(250), schedule.RateBPS(2))
	assert.Equal(t, int64(50), schedule.RateBPS(3))
	assert.Equal(t, int64(0), schedule.RateBPS(-1))
}
