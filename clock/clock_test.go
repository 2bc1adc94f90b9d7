package clock

import (
	"testing"
	"time"

	"github.com/foundatio-go/foundatio/testing/assert"
)

func TestFakeClock_NowAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), c.Now())
}

func TestFakeClock_MonotonicNowAdvancesWithNow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	assert.Equal(t, start.UnixNano(), c.MonotonicNow())

	c.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second).UnixNano(), c.MonotonicNow())
}

func TestRealClock_MonotonicNowNeverDecreases(t *testing.T) {
	first := Real.MonotonicNow()
	time.Sleep(time.Millisecond)
	second := Real.MonotonicNow()
	assert.True(t, second > first)
}

func TestFakeClock_TimerFiresOnAdvance(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	timer := c.NewTimer(10 * time.Second)

	select {
	case <-timer.C():
		t.Fatal("timer fired before advance")
	default:
	}

	c.Advance(10 * time.Second)

	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire after advance")
	}
}

func TestFakeClock_TickerRepeats(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)

	c.Advance(3 * time.Second)

	count := 0
	for {
		select {
		case <-ticker.C():
			count++
			continue
		default:
		}
		break
	}
	assert.True(t, count >= 1)
}

func TestFakeClock_StopPreventsFire(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	timer := c.NewTimer(time.Second)
	timer.Stop()
	c.Advance(5 * time.Second)

	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestAlarm_FiresAtNextDue(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	due := c.Now().Add(2 * time.Second)
	a := NewAlarm(c, func(now time.Time) time.Duration {
		d := due.Sub(now)
		if d < 0 {
			return 0
		}
		return d
	})
	defer a.Stop()

	c.Advance(2 * time.Second)

	select {
	case <-a.C():
	default:
		t.Fatal("alarm did not fire at due time")
	}
}

func TestAlarm_KickRecomputes(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	nextDue := c.Now().Add(time.Hour)
	a := NewAlarm(c, func(now time.Time) time.Duration {
		return nextDue.Sub(now)
	})
	defer a.Stop()

	nextDue = c.Now().Add(time.Second)
	a.Kick()
	<-a.Kicked()
	a.Rearm()

	c.Advance(time.Second)
	select {
	case <-a.C():
	default:
		t.Fatal("alarm did not fire after kick shortened deadline")
	}
}
