package warehouse

import "time"

// DateKey returns the YYYYMMDD integer key for a date. The key is a pure
// function of the date so facts and dim_date rows always agree.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// NewDimDate derives every date dimension attribute for a single day.
// Day of week follows the ISO convention (1=Monday..7=Sunday), weekends
// are Saturday and Sunday.
func NewDimDate(t time.Time) DimDate {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	dayOfWeek := isoWeekday(t)
	_, week := t.ISOWeek()

	return DimDate{
		DateKey:    DateKey(t),
		Date:       t,
		Year:       t.Year(),
		Quarter:    (int(t.Month())-1)/3 + 1,
		Month:      int(t.Month()),
		MonthName:  t.Month().String(),
		Day:        t.Day(),
		DayOfWeek:  dayOfWeek,
		DayName:    t.Weekday().String(),
		WeekOfYear: week,
		IsWeekend:  dayOfWeek >= 6,
	}
}

func isoWeekday(t time.Time) int {
	// time.Weekday has Sunday=0, ISO wants Monday=1..Sunday=7
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}
