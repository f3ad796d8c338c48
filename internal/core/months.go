package core

import (
	"strconv"
	"time"
)

// MonthNames lists calendar month names in calendar order.
var MonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var monthIndex = func() map[string]int {
	m := make(map[string]int, len(MonthNames))
	for i, name := range MonthNames {
		m[name] = i + 1
	}
	return m
}()

// MonthIndex returns the 1-based calendar index of a month name, or 0 if the
// name is not a calendar month.
func MonthIndex(name string) int {
	return monthIndex[name]
}

// YearMonthLabel builds the composite label used on the monthly series axis.
func YearMonthLabel(year int, month string) string {
	return strconv.Itoa(year) + "-" + month
}

// MonthName returns the English name of a time.Month.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return MonthNames[m-1]
}
