package models

import "time"

const (
	DefaultLecturer = "Unknown"
	GeneralTopic    = "General"
)

type Subject struct {
	Code        string       `json:"code" dynamodbav:"code"`
	IsCore      bool         `json:"isCore" dynamodbav:"isCore"`
	Lecturer    string       `json:"lecturer" dynamodbav:"lecturer"`
	CourseCode  string       `json:"courseCode" dynamodbav:"courseCode"`
	Weaknesses  []string     `json:"weaknesses" dynamodbav:"weaknesses"`
	QuizHistory []QuizRecord `json:"quizHistory" dynamodbav:"quizHistory"`
	Materials   []Material   `json:"materials" dynamodbav:"materials"`
	LastActive  string       `json:"lastActive" dynamodbav:"lastActive"` // ISO timestamp
}

type QuizRecord struct {
	Score      float64 `json:"score" dynamodbav:"score"`
	FocusTopic string  `json:"focusTopic,omitempty" dynamodbav:"focusTopic,omitempty"`
	Date       string  `json:"date" dynamodbav:"date"`
}

type Material struct {
	ID          string `json:"id" dynamodbav:"id"`
	Name        string `json:"name" dynamodbav:"name"`
	Preview     string `json:"preview" dynamodbav:"preview"`
	LessonTitle string `json:"lessonTitle" dynamodbav:"lessonTitle"`
	Date        string `json:"date" dynamodbav:"date"`
}

// NewSubject seeds a subject with the defaults used on first reference.
func NewSubject(code string, isCore bool, lecturer, courseCode string) *Subject {
	if lecturer == "" {
		lecturer = DefaultLecturer
	}
	if courseCode == "" {
		courseCode = code
	}
	return &Subject{
		Code:        code,
		IsCore:      isCore,
		Lecturer:    lecturer,
		CourseCode:  courseCode,
		Weaknesses:  []string{},
		QuizHistory: []QuizRecord{},
		Materials:   []Material{},
	}
}

func (s *Subject) HasWeaknesses() bool {
	return len(s.Weaknesses) > 0
}

// AddWeakness appends topic unless it is already flagged. Matching is exact.
func (s *Subject) AddWeakness(topic string) bool {
	for _, w := range s.Weaknesses {
		if w == topic {
			return false
		}
	}
	s.Weaknesses = append(s.Weaknesses, topic)
	return true
}

// AddMaterial appends m unless a material with the same name exists.
func (s *Subject) AddMaterial(m Material) bool {
	for _, existing := range s.Materials {
		if existing.Name == m.Name {
			return false
		}
	}
	s.Materials = append(s.Materials, m)
	return true
}

// MaterialsNewestFirst returns a reversed copy of the materials.
func (s *Subject) MaterialsNewestFirst() []Material {
	out := make([]Material, 0, len(s.Materials))
	for i := len(s.Materials) - 1; i >= 0; i-- {
		out = append(out, s.Materials[i])
	}
	return out
}

// AverageScore is the mean quiz score; an empty history counts as 100.
func (s *Subject) AverageScore() float64 {
	if len(s.QuizHistory) == 0 {
		return 100
	}
	var total float64
	for _, r := range s.QuizHistory {
		total += r.Score
	}
	return total / float64(len(s.QuizHistory))
}

func (s *Subject) Touch(now time.Time) {
	s.LastActive = now.UTC().Format(time.RFC3339)
}
