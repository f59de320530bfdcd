package utils

import (
	"time"
)

// ParseTime 解析时间字符串（格式：HH:MM:SS）并应用到指定日期
func ParseTime(timeStr string, date time.Time) (time.Time, error) {
	if timeStr == "" {
		return date, nil
	}

	parsedTime, err := time.Parse("15:04:05", timeStr)
	if err != nil {
		return date, err
	}

	return time.Date(
		date.Year(),
		date.Month(),
		date.Day(),
		parsedTime.Hour(),
		parsedTime.Minute(),
		parsedTime.Second(),
		0,
		date.Location(),
	), nil
}

// LoadLocation 依次尝试 tz 与 fallback，都无效时返回 UTC
func LoadLocation(tz, fallback string) *time.Location {
	for _, name := range []string{tz, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// ValidTimezone 是否为 IANA 时区名
func ValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}
