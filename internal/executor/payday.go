package executor

import "time"

// lastPaydayDate resolves the most recent occurrence of paydayDay on or
// before now: this month's if today's day-of-month has reached it,
// otherwise last month's. Either is clamped to the shorter month's last
// day when paydayDay doesn't exist in it (e.g. configured day 31 in
// February), resolving the bills-replenishment cycle-boundary open
// question the same way for every calendar month.
func lastPaydayDate(now time.Time, paydayDay int) time.Time {
	if paydayDay <= 0 {
		paydayDay = 1
	}
	thisMonth := clampToMonth(now.Year(), now.Month(), paydayDay)
	if now.Day() >= thisMonth.Day() {
		return thisMonth
	}
	prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	return clampToMonth(prev.Year(), prev.Month(), paydayDay)
}

func clampToMonth(year int, month time.Month, day int) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}
