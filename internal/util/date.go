package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"1/2/06",
	time.RFC3339,
}

// ParseDate accepts ISO and US-style calendar dates plus Excel serial day numbers.
func ParseDate(input string) (time.Time, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial >= 1 && serial <= 2958465 {
			parsed, err := excelize.ExcelDateToTime(serial, false)
			if err == nil {
				return truncateDay(parsed), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date: %s", input)
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return truncateDay(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", input)
}

func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
