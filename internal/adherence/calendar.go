package adherence

import "time"

// DayStatus 日历上某一天的状态
type DayStatus string

const (
	DayTaken    DayStatus = "taken"    // 当天至少服药一次
	DayMissed   DayStatus = "missed"   // 已过去且未服药
	DayToday    DayStatus = "today"    // 今天，尚未服药
	DayUpcoming DayStatus = "upcoming" // 未来
)

// CalendarDay 日历单元
type CalendarDay struct {
	Date   string    `json:"date"`
	Status DayStatus `json:"status"`
}

// Summary 依从性概览
type Summary struct {
	ReferenceDate string `json:"reference_date"`
	Streak        int    `json:"streak"`
	LongestStreak int    `json:"longest_streak"`
	MonthlyRate   int    `json:"monthly_rate"`
	TakenToday    bool   `json:"taken_today"`
}

// Summarize 计算 ref 当天的概览
func Summarize(taken TakenDates, ref time.Time, maxStreakDays int) Summary {
	return Summary{
		ReferenceDate: DayKey(ref),
		Streak:        ComputeStreakWithLimit(taken, ref, maxStreakDays),
		LongestStreak: LongestStreak(taken),
		MonthlyRate:   ComputeMonthlyRate(taken, ref),
		TakenToday:    taken.Has(ref),
	}
}

// MonthCalendar 返回 month 所在月份每一天的状态，today 决定已过去/未来的分界
func MonthCalendar(taken TakenDates, month, today time.Time) []CalendarDay {
	loc := today.Location()
	first := time.Date(month.Year(), month.Month(), 1, 12, 0, 0, 0, loc)
	todayKey := DayKey(today)

	days := make([]CalendarDay, 0, 31)
	for day := first; day.Month() == first.Month(); day = day.AddDate(0, 0, 1) {
		key := DayKey(day)
		var status DayStatus
		switch {
		case taken.HasKey(key):
			status = DayTaken
		case key == todayKey:
			status = DayToday
		case key < todayKey:
			status = DayMissed
		default:
			status = DayUpcoming
		}
		days = append(days, CalendarDay{Date: key, Status: status})
	}
	return days
}
