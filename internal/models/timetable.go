package models

import (
	"fmt"
	"strings"
)

// Weekdays and TimeLabels define the weekly grid, in walk order.
var (
	Weekdays   = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	TimeLabels = []string{"9:00 AM", "2:00 PM", "6:00 PM", "8:00 PM"}
)

type TimetableSlot struct {
	Day     string `json:"day" dynamodbav:"day"`
	Time    string `json:"time" dynamodbav:"time"`
	Subject string `json:"subject" dynamodbav:"subject"`
	Focus   string `json:"focus" dynamodbav:"focus"`
}

// SlotsOn returns the slots scheduled on day, in timetable order.
func SlotsOn(timetable []TimetableSlot, day string) []TimetableSlot {
	var out []TimetableSlot
	for _, slot := range timetable {
		if slot.Day == day {
			out = append(out, slot)
		}
	}
	return out
}

func FormatDailyPlan(day string, slots []TimetableSlot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 Study plan for %s\n\n", day))
	if len(slots) == 0 {
		sb.WriteString("No sessions scheduled today. Enjoy the break!\n")
		return sb.String()
	}
	for i, slot := range slots {
		if i > 0 {
			sb.WriteString("\n-------------------\n")
		}
		sb.WriteString(fmt.Sprintf("【%s】%s\n", slot.Time, slot.Subject))
		sb.WriteString(fmt.Sprintf("Focus: %s\n", slot.Focus))
	}
	return sb.String()
}
