package planner

import (
	"fmt"
	"math"
	"time"

	"course-pilot/internal/models"
)

const (
	ActionExplainWeakness = "explain_weakness"
	ActionReviewBasics    = "review_basics"
	ActionContinueTrack   = "continue_track"
)

// Advisor picks the next thing a student should do for a subject. It never
// mutates the user.
type Advisor struct {
	loc *time.Location
	now func() time.Time
}

func NewAdvisor(loc *time.Location) *Advisor {
	if loc == nil {
		loc = time.UTC
	}
	return &Advisor{loc: loc, now: time.Now}
}

// Today is the weekday abbreviation of the current day in the advisor's zone.
func (a *Advisor) Today() string {
	return a.now().In(a.loc).Weekday().String()[:3]
}

func (a *Advisor) DecideNextAction(u *models.User, subjectID string) *models.Suggestion {
	if u == nil {
		return nil
	}
	sub := u.Subject(subjectID)
	if sub == nil {
		return nil
	}

	if sub.IsCore && sub.HasWeaknesses() {
		return &models.Suggestion{
			Type:    models.SuggestionType,
			Message: fmt.Sprintf("⚠️ Focus Needed: You identified weaknesses in **%s** for this Core Course.", sub.Weaknesses[0]),
			Action:  ActionExplainWeakness,
		}
	}

	if avg := sub.AverageScore(); avg < 50 {
		return &models.Suggestion{
			Type:    models.SuggestionType,
			Message: fmt.Sprintf("📉 Your quiz scores are low (%d%%). Shall we review the foundational concepts?", int(math.Round(avg))),
			Action:  ActionReviewBasics,
		}
	}

	today := a.Today()
	for _, slot := range u.Timetable {
		if slot.Day == today && slot.Subject == subjectID {
			return &models.Suggestion{
				Type:    models.SuggestionType,
				Message: fmt.Sprintf("📅 You are on track! This session aligns with your timetable focus: %s.", slot.Focus),
				Action:  ActionContinueTrack,
			}
		}
	}

	return nil
}
