package jobs

import (
	"testing"
	"time"

	"github.com/foundatio-go/foundatio/testing/assert"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s, err := NewIntervalSchedule(time.Minute)
	assert.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Minute), s.Next(now))
}

func TestIntervalSchedule_RejectsNonPositive(t *testing.T) {
	_, err := NewIntervalSchedule(0)
	assert.Error(t, err)
}

func TestOneShotSchedule_FiresOnceThenZero(t *testing.T) {
	s, err := NewOneShotSchedule(time.Minute)
	assert.NoError(t, err)
	before := time.Now()
	assert.False(t, s.Next(before).IsZero())
	assert.True(t, s.Next(s.runAt.Add(time.Second)).IsZero())
}

func TestCronSchedule_HourlyMacro(t *testing.T) {
	cs, err := NewCronSchedule("@hourly")
	assert.NoError(t, err)
	from := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	next := cs.Next(from)
	assert.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), next)
}

func TestCronSchedule_InvalidExpr(t *testing.T) {
	_, err := NewCronSchedule("bogus")
	assert.Error(t, err)
}

func TestCronSchedule_SpecificMinuteHour(t *testing.T) {
	cs, err := NewCronSchedule("30 4 * * *")
	assert.NoError(t, err)
	from := time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC)
	next := cs.Next(from)
	assert.Equal(t, time.Date(2026, 3, 5, 4, 30, 0, 0, time.UTC), next)
}
