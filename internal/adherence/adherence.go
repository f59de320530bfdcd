// Package adherence 根据"已服药日期集合"计算连续天数和月度服药率。
//
// 所有函数都是纯函数：参考日期和时区由调用方显式传入，不读取系统时钟。
// 日期按调用方所在时区的自然日计算，晚上 11 点的服药记录计入当天，即使 UTC 已是次日。
package adherence

import (
	"sort"
	"time"
)

const (
	// DayLayout 日期键格式 yyyy-MM-dd
	DayLayout = "2006-01-02"

	// DefaultMaxStreakDays 连续天数的迭代上限（约 10 年），防止异常数据导致无限循环
	DefaultMaxStreakDays = 3650
)

// TakenDates 至少有一条服药记录的自然日集合，键为 yyyy-MM-dd
type TakenDates map[string]struct{}

// NewTakenDates 由日期键构造集合
func NewTakenDates(days ...string) TakenDates {
	taken := make(TakenDates, len(days))
	for _, d := range days {
		taken[d] = struct{}{}
	}
	return taken
}

// FromTimes 将服药时间戳按 loc 时区折算为自然日集合
func FromTimes(times []time.Time, loc *time.Location) TakenDates {
	if loc == nil {
		loc = time.Local
	}
	taken := make(TakenDates, len(times))
	for _, t := range times {
		taken[DayKey(t.In(loc))] = struct{}{}
	}
	return taken
}

// DayKey 返回 t 在其自身时区下的日期键
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay 按 loc 解析 yyyy-MM-dd，返回当天 00:00
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DayLayout, day, loc)
}

// Add 将 day 所在自然日加入集合
func (t TakenDates) Add(day time.Time) {
	t[DayKey(day)] = struct{}{}
}

// Has 判断 day 所在自然日是否已服药
func (t TakenDates) Has(day time.Time) bool {
	_, ok := t[DayKey(day)]
	return ok
}

// HasKey 判断日期键是否在集合中
func (t TakenDates) HasKey(key string) bool {
	_, ok := t[key]
	return ok
}

// Keys 返回升序排列的日期键
func (t TakenDates) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ComputeStreak 从 ref 当天开始逐日向前数连续已服药的天数，ref 当天未服药即为 0
func ComputeStreak(taken TakenDates, ref time.Time) int {
	return ComputeStreakWithLimit(taken, ref, DefaultMaxStreakDays)
}

// ComputeStreakWithLimit 同 ComputeStreak，迭代次数不超过 maxDays
func ComputeStreakWithLimit(taken TakenDates, ref time.Time, maxDays int) int {
	if len(taken) == 0 || maxDays <= 0 {
		return 0
	}

	streak := 0
	for streak < maxDays && taken.Has(dayOffset(ref, -streak)) {
		streak++
	}
	return streak
}

// ComputeMonthlyRate 计算 ref 所在月 1 号到 ref（含）之间的服药率，四舍五入到整数百分比
func ComputeMonthlyRate(taken TakenDates, ref time.Time) int {
	days := ref.Day() // 区间 [1 号, ref] 的天数，至少为 1
	count := 0
	for d := 1; d <= days; d++ {
		if taken.Has(time.Date(ref.Year(), ref.Month(), d, 12, 0, 0, 0, ref.Location())) {
			count++
		}
	}
	return roundPercent(count, days)
}

// LongestStreak 集合中最长的连续天数
func LongestStreak(taken TakenDates) int {
	keys := taken.Keys()
	longest, current := 0, 0
	var prev time.Time
	for i, k := range keys {
		day, err := time.Parse(DayLayout, k)
		if err != nil {
			current = 0
			continue
		}
		if i > 0 && current > 0 && day.Equal(prev.AddDate(0, 0, 1)) {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
		prev = day
	}
	return longest
}

// roundPercent 100*num/den 按四舍五入（.5 进位）取整，den 必须大于 0
func roundPercent(num, den int) int {
	return (200*num + den) / (2 * den)
}

// dayOffset 返回 ref 之后 offset 天（负数为之前）的正午时刻，避开夏令时切换点
func dayOffset(ref time.Time, offset int) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day()+offset, 12, 0, 0, 0, ref.Location())
}
