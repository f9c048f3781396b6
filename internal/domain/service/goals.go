package service

import (
	"math"
	"time"

	"finsaathi-ai-api/internal/domain/entity"
)

// MonthsBetween 两个时间之间的整月数，to 不晚于 from 时为 0
func MonthsBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// GoalOnTrack 按当前月结余判断目标能否在截止日前达成。
// 已达成视为达标，截止日已过视为未达标，无截止日时只要有进度即达标。
func GoalOnTrack(g *entity.Goal, now time.Time, monthlySavings float64) bool {
	if g == nil {
		return false
	}
	remaining := math.Max(0, g.TargetAmount-g.CurrentAmount)
	if remaining == 0 {
		return true
	}
	if g.Deadline == nil {
		return g.CurrentAmount > 0
	}
	months := MonthsBetween(now, *g.Deadline)
	if months == 0 {
		return false
	}
	return remaining/float64(months) <= monthlySavings
}
