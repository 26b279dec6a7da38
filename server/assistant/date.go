package assistant

import (
	"regexp"
	"strings"
	"time"
)

var explicitDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

var weekdayNames = map[string]time.Weekday{
	"一": time.Monday,
	"二": time.Tuesday,
	"三": time.Wednesday,
	"四": time.Thursday,
	"五": time.Friday,
	"六": time.Saturday,
	"日": time.Sunday,
	"天": time.Sunday,
}

// resolveDate infers the date a request refers to, relative to the current
// date: explicit YYYY-MM-DD wins, then 今天/明天/后天/大后天, then weekday
// names (下周X jumps to next week; a bare 周X matching today means today).
// Without any hint the current date is assumed.
func resolveDate(text string, current time.Time) string {
	if m := explicitDatePattern.FindString(text); m != "" {
		return m
	}

	switch {
	case strings.Contains(text, "大后天"):
		return current.AddDate(0, 0, 3).Format("2006-01-02")
	case strings.Contains(text, "后天"):
		return current.AddDate(0, 0, 2).Format("2006-01-02")
	case strings.Contains(text, "明天") || strings.Contains(text, "tomorrow"):
		return current.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(text, "今天") || strings.Contains(text, "today"):
		return current.Format("2006-01-02")
	}

	for name, weekday := range weekdayNames {
		for _, prefix := range []string{"周", "星期", "礼拜"} {
			token := prefix + name
			idx := strings.Index(text, token)
			if idx < 0 {
				continue
			}
			days := (int(weekday) - int(current.Weekday()) + 7) % 7
			// 下周X / 下星期X always points into next week.
			if strings.HasSuffix(text[:idx], "下") {
				days += 7
			}
			return current.AddDate(0, 0, days).Format("2006-01-02")
		}
	}

	return current.Format("2006-01-02")
}
