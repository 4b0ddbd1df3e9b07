package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateKey(t *testing.T) {
	assert.Equal(t, 20230101, DateKey(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 20241231, DateKey(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 20240229, DateKey(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)))

	// time of day never changes the key
	morning := time.Date(2023, time.June, 15, 8, 30, 0, 0, time.UTC)
	evening := time.Date(2023, time.June, 15, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, DateKey(morning), DateKey(evening))
}

func TestNewDimDateWeekday(t *testing.T) {
	// 2023-01-02 was a Monday
	d := NewDimDate(time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 20230102, d.DateKey)
	assert.Equal(t, 2023, d.Year)
	assert.Equal(t, 1, d.Quarter)
	assert.Equal(t, 1, d.Month)
	assert.Equal(t, "January", d.MonthName)
	assert.Equal(t, 2, d.Day)
	assert.Equal(t, 1, d.DayOfWeek)
	assert.Equal(t, "Monday", d.DayName)
	assert.Equal(t, 1, d.WeekOfYear)
	assert.False(t, d.IsWeekend)
}

func TestNewDimDateWeekend(t *testing.T) {
	// 2023-01-01 was a Sunday
	sunday := NewDimDate(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 7, sunday.DayOfWeek)
	assert.Equal(t, "Sunday", sunday.DayName)
	assert.True(t, sunday.IsWeekend)

	// 2023-01-07 was a Saturday
	saturday := NewDimDate(time.Date(2023, time.January, 7, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 6, saturday.DayOfWeek)
	assert.True(t, saturday.IsWeekend)

	friday := NewDimDate(time.Date(2023, time.January, 6, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 5, friday.DayOfWeek)
	assert.False(t, friday.IsWeekend)
}

func TestNewDimDateISOWeek(t *testing.T) {
	// 2021-01-01 was a Friday, ISO week 53 of 2020
	d := NewDimDate(time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 53, d.WeekOfYear)

	// fourth quarter
	q4 := NewDimDate(time.Date(2022, time.November, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 4, q4.Quarter)
}

func TestNewDimDateDeterministic(t *testing.T) {
	date := time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC)

	first := NewDimDate(date)
	second := NewDimDate(date)

	assert.Equal(t, first, second)
}
