// Package continuity replays the entry log into derived metrics: the current
// streak, a rolling integrity score, and a weekly reward total.
//
// Every function here is pure: no stored state, no side effects, identical
// inputs produce identical outputs regardless of when or from which device the
// underlying log was last merged.
package continuity

import (
	"math"
	"time"

	"github.com/4kiu/axiom/internal/logbook"
)

// day is a calendar-day bucket of entries, pre-classified for the walks below.
type day struct {
	hasSurvival  bool
	hasRest      bool
	hasNormal    bool
	hasOverdrive bool
	hasActive    bool // any identity other than Rest and Survival
	weight       float64
}

// integrityWeights are the per-day point weights for the rolling 7-day window.
var integrityWeights = map[logbook.Identity]float64{
	logbook.Overdrive:   100.0 / 7,
	logbook.Normal:      100.0 / 7,
	logbook.Maintenance: 40.0 / 7,
	logbook.Rest:        40.0 / 7,
	logbook.Survival:    20.0 / 7,
}

func bucket(entries []logbook.Entry, loc *time.Location) map[time.Time]*day {
	days := make(map[time.Time]*day)
	for _, e := range entries {
		key := e.Day(loc)
		d := days[key]
		if d == nil {
			d = &day{}
			days[key] = d
		}
		switch e.Identity {
		case logbook.Survival:
			d.hasSurvival = true
		case logbook.Rest:
			d.hasRest = true
		case logbook.Normal:
			d.hasNormal = true
			d.hasActive = true
		case logbook.Overdrive:
			d.hasOverdrive = true
			d.hasActive = true
		default:
			d.hasActive = true
		}
		if w := integrityWeights[e.Identity]; w > d.weight {
			d.weight = w
		}
	}
	return days
}

// Streak is the consecutive-day count of non-Survival activity, walking
// backward from today. A day with no entry yet today is a grace day: the walk
// starts at yesterday instead, without counting today. Rest bridges the streak
// without incrementing it; Survival or a gap stops it.
//
// When a day holds several entries (legal for imported data) the rule order
// is Survival, then Rest, then anything else.
func Streak(entries []logbook.Entry, now time.Time, loc *time.Location) int {
	days := bucket(entries, loc)
	check := logbook.DayOf(now, loc)
	if days[check] == nil {
		check = check.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		d := days[check]
		switch {
		case d == nil:
			return streak
		case d.hasSurvival:
			return streak
		case d.hasActive:
			streak++
		// Rest-only day: bridge without incrementing.
		}
		check = check.AddDate(0, 0, -1)
	}
}

// Integrity is the rolling 7-day weighted-presence percentage for the window
// ending today. Rounded and clamped to [0, 100]; the clamp also absorbs any
// floating-point overshoot of the summed sevenths.
func Integrity(entries []logbook.Entry, now time.Time, loc *time.Location) int {
	days := bucket(entries, loc)
	today := logbook.DayOf(now, loc)

	sum := 0.0
	for i := 0; i < 7; i++ {
		if d := days[today.AddDate(0, 0, -i)]; d != nil {
			sum += d.weight
		}
	}

	score := int(math.Round(sum))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// PointsBreakdown is the weekly reward total with its components.
type PointsBreakdown struct {
	Base             int
	OverdriveCount   int
	OverdrivePoints  int
	EnergyBonus      int
	LongestNormalRun int
	StreakBonus      int
	Total            int
}

// WeeklyPoints computes the reward total for the week window
// [weekStart, weekStart+7d). The Normal-run calculation is independent per
// week: it never inherits state from the prior week, unlike Streak.
//
// Overdrive bridges the Normal run without incrementing it.
func WeeklyPoints(entries []logbook.Entry, weekStart time.Time, loc *time.Location) PointsBreakdown {
	start := logbook.DayOf(weekStart, loc)
	end := start.AddDate(0, 0, 7)

	var b PointsBreakdown
	for _, e := range entries {
		t := e.Time().In(loc)
		if t.Before(start) || !t.Before(end) {
			continue
		}
		switch e.Identity {
		case logbook.Overdrive:
			b.OverdriveCount++
		case logbook.Normal:
			b.Base += 10
		case logbook.Maintenance:
			b.Base += 6
		case logbook.Survival:
			b.Base += 3
		}
		if e.Energy >= 4 {
			b.EnergyBonus++
		}
	}

	switch {
	case b.OverdriveCount >= 3:
		b.OverdrivePoints = 25 * b.OverdriveCount
	case b.OverdriveCount == 2:
		b.OverdrivePoints = 20 * b.OverdriveCount
	default:
		b.OverdrivePoints = 15 * b.OverdriveCount
	}

	days := bucket(entries, loc)
	run := 0
	for i := 0; i < 7; i++ {
		d := days[start.AddDate(0, 0, i)]
		switch {
		case d != nil && d.hasNormal:
			run++
			if run > b.LongestNormalRun {
				b.LongestNormalRun = run
			}
		case d != nil && d.hasOverdrive:
			// Overdrive bridges the run: neither increments nor resets.
		default:
			run = 0
		}
	}

	switch {
	case b.LongestNormalRun >= 6:
		b.StreakBonus = 5
	case b.LongestNormalRun == 5:
		b.StreakBonus = 4
	case b.LongestNormalRun == 4:
		b.StreakBonus = 3
	case b.LongestNormalRun == 3:
		b.StreakBonus = 2
	}

	b.Total = b.Base + b.OverdrivePoints + b.EnergyBonus + b.StreakBonus
	return b
}

// WeekStart returns the most recent occurrence of startDay at or before t,
// at midnight in loc.
func WeekStart(t time.Time, startDay time.Weekday, loc *time.Location) time.Time {
	d := logbook.DayOf(t, loc)
	diff := int(d.Weekday()) - int(startDay)
	if diff < 0 {
		diff += 7
	}
	return d.AddDate(0, 0, -diff)
}
