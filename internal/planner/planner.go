package planner

import (
	"course-pilot/internal/models"
)

const (
	FocusWeaknessPrefix = "Weakness: "
	FocusExamPractice   = "Exam Practice (High Yield)"
	FocusCoreDeepDive   = "Core Deep Dive"
	FocusGeneralStudy   = "General Study"
)

// Config controls the grid. SlotsPerDay of zero scales the daily cap by the
// profile's study pace.
type Config struct {
	SlotsPerDay int
}

type Planner struct {
	days        []string
	times       []string
	slotsPerDay int
}

func New(cfg Config) *Planner {
	return &Planner{
		days:        models.Weekdays,
		times:       models.TimeLabels,
		slotsPerDay: cfg.SlotsPerDay,
	}
}

type queueEntry struct {
	code  string
	focus string
}

// SlotsPerDay is the number of grid cells filled per day for pace.
func (p *Planner) SlotsPerDay(pace models.StudyPace) int {
	n := p.slotsPerDay
	if n <= 0 {
		switch pace {
		case models.StudyPaceSlow:
			n = 2
		case models.StudyPaceFast:
			n = 4
		default:
			n = 3
		}
	}
	if n > len(p.times) {
		n = len(p.times)
	}
	return n
}

// Weight is the number of queue entries a subject expands into.
func Weight(sub *models.Subject, examMode bool) int {
	weight := 1
	if sub.IsCore {
		weight++
	}
	if examMode && sub.IsCore {
		weight += 2
	}
	if sub.HasWeaknesses() {
		weight++
	}
	return weight
}

// FocusLabel is the label of the i-th entry of a subject's run.
func FocusLabel(sub *models.Subject, examMode bool, i int) string {
	switch {
	case i == 0 && sub.HasWeaknesses():
		return FocusWeaknessPrefix + sub.Weaknesses[0]
	case examMode:
		return FocusExamPractice
	case sub.IsCore:
		return FocusCoreDeepDive
	default:
		return FocusGeneralStudy
	}
}

// Generate lays the weighted subject queue over the weekly grid. Subjects are
// walked in slice order; entries that do not fit in one week are dropped.
func (p *Planner) Generate(profile models.Profile, subjects []*models.Subject) []models.TimetableSlot {
	var queue []queueEntry
	for _, sub := range subjects {
		weight := Weight(sub, profile.ExamMode)
		for i := 0; i < weight; i++ {
			queue = append(queue, queueEntry{code: sub.Code, focus: FocusLabel(sub, profile.ExamMode, i)})
		}
	}

	perDay := p.SlotsPerDay(profile.StudyPace)
	slots := make([]models.TimetableSlot, 0, min(len(queue), perDay*len(p.days)))
	next := 0
	for _, day := range p.days {
		for _, t := range p.times[:perDay] {
			if next >= len(queue) {
				return slots
			}
			slots = append(slots, models.TimetableSlot{
				Day:     day,
				Time:    t,
				Subject: queue[next].code,
				Focus:   queue[next].focus,
			})
			next++
		}
	}
	return slots
}

// Regenerate replaces the user's timetable with a freshly generated one.
func (p *Planner) Regenerate(u *models.User) []models.TimetableSlot {
	u.Timetable = p.Generate(u.Profile, u.Subjects)
	return u.Timetable
}
