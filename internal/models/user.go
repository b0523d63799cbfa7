package models

import (
	"strings"
	"time"
)

type StudyPace string

const (
	StudyPaceSlow     StudyPace = "slow"
	StudyPaceModerate StudyPace = "moderate"
	StudyPaceFast     StudyPace = "fast"
)

func (p StudyPace) Valid() bool {
	switch p {
	case StudyPaceSlow, StudyPaceModerate, StudyPaceFast:
		return true
	}
	return false
}

type Profile struct {
	Name          string    `json:"name" dynamodbav:"name"`
	ExamMode      bool      `json:"examMode" dynamodbav:"examMode"`
	StudyPace     StudyPace `json:"studyPace" dynamodbav:"studyPace"`
	PreferredTime string    `json:"preferredTime" dynamodbav:"preferredTime"` // informational only
	LineUserID    string    `json:"lineUserId,omitempty" dynamodbav:"lineUserId,omitempty"`
	ReminderTime  string    `json:"reminderTime,omitempty" dynamodbav:"reminderTime,omitempty"` // "HH:MM"
}

// User is the whole persisted state of one student. Subjects are kept in
// creation order, which is the order the planner walks them in.
type User struct {
	UserID    string          `json:"userId" dynamodbav:"userId"`
	Profile   Profile         `json:"profile" dynamodbav:"profile"`
	Subjects  []*Subject      `json:"subjects" dynamodbav:"subjects"`
	Timetable []TimetableSlot `json:"timetable" dynamodbav:"timetable"`
	Version   int64           `json:"version" dynamodbav:"version"`
	UpdatedAt string          `json:"updatedAt" dynamodbav:"updatedAt"` // ISO timestamp
}

// NewUser returns the default state for a user seen for the first time.
func NewUser(userID string) *User {
	name, _, _ := strings.Cut(userID, "@")
	return &User{
		UserID: userID,
		Profile: Profile{
			Name:          name,
			StudyPace:     StudyPaceModerate,
			PreferredTime: "morning",
		},
		Subjects:  []*Subject{},
		Timetable: []TimetableSlot{},
	}
}

// Subject returns the subject with the given code, or nil.
func (u *User) Subject(code string) *Subject {
	for _, s := range u.Subjects {
		if s.Code == code {
			return s
		}
	}
	return nil
}

// EnsureSubject returns the existing subject for code or appends a new one
// built by create.
func (u *User) EnsureSubject(code string, create func() *Subject) (*Subject, bool) {
	if s := u.Subject(code); s != nil {
		return s, false
	}
	s := create()
	u.Subjects = append(u.Subjects, s)
	return s, true
}

// Weaknesses flattens the weaknesses of all subjects in subject order.
func (u *User) Weaknesses() []string {
	out := []string{}
	for _, s := range u.Subjects {
		out = append(out, s.Weaknesses...)
	}
	return out
}

func (u *User) Touch(now time.Time) {
	u.UpdatedAt = now.UTC().Format(time.RFC3339)
}
