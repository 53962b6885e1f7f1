package domain

const (
	MinReportDays   = 1
	MaxReportDays   = 30
	MinReportMonths = 1
	MaxReportMonths = 24

	DefaultReportDays   = 7
	DefaultReportMonths = 6
)

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Summary struct {
	Total        int `json:"total"`
	CheckedIn    int `json:"checked_in"`
	CheckedToday int `json:"checked_in_today"`
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
