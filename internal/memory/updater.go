package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"course-pilot/internal/models"
	"course-pilot/internal/planner"
	"course-pilot/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Action string

const (
	ActionUploadNotes Action = "upload_notes"
	ActionQuizResult  Action = "quiz_result"
	ActionInit        Action = "init"
	ActionChat        Action = "chat"
)

// WeaknessThreshold is the quiz score below which the focus topic is flagged.
const WeaknessThreshold = 60

const defaultMaxAttempts = 3

var (
	ErrUnknownAction       = errors.New("unknown memory action")
	ErrInvalidStudyPace    = errors.New("invalid study pace")
	ErrInvalidReminderTime = errors.New("invalid reminder time")
	ErrMissingID           = errors.New("userId and subjectId are required")
)

func (a Action) Valid() bool {
	switch a {
	case ActionUploadNotes, ActionQuizResult, ActionInit, ActionChat:
		return true
	}
	return false
}

// Data carries the optional event payload. Which fields matter depends on
// the action.
type Data struct {
	IsCore     bool
	Lecturer   string
	CourseCode string

	FileName    string
	Preview     string
	LessonTitle string

	Score      float64
	FocusTopic string
}

// Settings holds a partial profile update; nil fields are left alone.
type Settings struct {
	Name          *string
	StudyPace     *models.StudyPace
	PreferredTime *string
	LineUserID    *string
	ReminderTime  *string
}

type Updater struct {
	logger      *logrus.Entry
	repo        utils.UserRepository
	planner     *planner.Planner
	locks       *keyedMutex
	maxAttempts int
	now         func() time.Time
	newID       func() string
}

func NewUpdater(logger *logrus.Entry, repo utils.UserRepository, p *planner.Planner) *Updater {
	return &Updater{
		logger:      logger,
		repo:        repo,
		planner:     p,
		locks:       newKeyedMutex(),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// UpdateMemory applies action to the subject, regenerates the timetable and
// persists the user. It returns the updated subject and user.
func (m *Updater) UpdateMemory(ctx context.Context, userID, subjectID string, action Action, data Data) (*models.Subject, *models.User, error) {
	if userID == "" || subjectID == "" {
		return nil, nil, ErrMissingID
	}
	if !action.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var sub *models.Subject
	user, err := m.mutate(ctx, userID, true, func(u *models.User) error {
		now := m.now()
		s, created := u.EnsureSubject(subjectID, func() *models.Subject {
			return models.NewSubject(subjectID, data.IsCore, data.Lecturer, data.CourseCode)
		})
		if created {
			m.logger.WithFields(logrus.Fields{
				"userId":    userID,
				"subjectId": subjectID,
			}).Info("Created subject")
		}
		if data.Lecturer != "" {
			s.Lecturer = data.Lecturer
		}
		s.Touch(now)

		switch action {
		case ActionUploadNotes:
			s.AddMaterial(models.Material{
				ID:          m.newID(),
				Name:        data.FileName,
				Preview:     data.Preview,
				LessonTitle: data.LessonTitle,
				Date:        now.UTC().Format(time.RFC3339),
			})
		case ActionQuizResult:
			topic := data.FocusTopic
			s.QuizHistory = append(s.QuizHistory, models.QuizRecord{
				Score:      data.Score,
				FocusTopic: topic,
				Date:       now.UTC().Format(time.RFC3339),
			})
			if data.Score < WeaknessThreshold {
				if topic == "" {
					topic = models.GeneralTopic
				}
				s.AddWeakness(topic)
			}
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sub, user, nil
}

func (m *Updater) ToggleExamMode(ctx context.Context, userID string, enabled bool) (*models.User, error) {
	return m.mutate(ctx, userID, true, func(u *models.User) error {
		u.Profile.ExamMode = enabled
		return nil
	})
}

func (m *Updater) UpdateSettings(ctx context.Context, userID string, s Settings) (*models.User, error) {
	if s.StudyPace != nil && !s.StudyPace.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStudyPace, *s.StudyPace)
	}
	if s.ReminderTime != nil && *s.ReminderTime != "" {
		if _, err := time.Parse("15:04", *s.ReminderTime); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReminderTime, *s.ReminderTime)
		}
	}

	return m.mutate(ctx, userID, true, func(u *models.User) error {
		p := &u.Profile
		if s.Name != nil {
			p.Name = *s.Name
		}
		if s.StudyPace != nil {
			p.StudyPace = *s.StudyPace
		}
		if s.PreferredTime != nil {
			p.PreferredTime = *s.PreferredTime
		}
		if s.LineUserID != nil {
			p.LineUserID = *s.LineUserID
		}
		if s.ReminderTime != nil {
			p.ReminderTime = *s.ReminderTime
		}
		return nil
	})
}

// OverrideTimetable stores slots as given. The next mutating event replaces
// them with a generated timetable again.
func (m *Updater) OverrideTimetable(ctx context.Context, userID string, slots []models.TimetableSlot) (*models.User, error) {
	override := make([]models.TimetableSlot, len(slots))
	copy(override, slots)
	return m.mutate(ctx, userID, false, func(u *models.User) error {
		u.Timetable = override
		return nil
	})
}

// mutate runs one read-modify-write for userID under the user's lock. A
// version conflict from storage restarts the cycle from a fresh read.
func (m *Updater) mutate(ctx context.Context, userID string, regenerate bool, apply func(u *models.User) error) (*models.User, error) {
	if userID == "" {
		return nil, ErrMissingID
	}
	unlock := m.locks.Lock(userID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		user, err := m.repo.GetOrCreateUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("failed to load user: %s vanished", userID)
		}
		if err := apply(user); err != nil {
			return nil, err
		}
		if regenerate {
			m.planner.Regenerate(user)
		}

		err = m.repo.SaveUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, utils.ErrVersionConflict) || attempt >= m.maxAttempts {
			return nil, fmt.Errorf("failed to save user: %w", err)
		}
		m.logger.WithFields(logrus.Fields{
			"userId":  userID,
			"attempt": attempt,
		}).Warn("Version conflict, retrying update")
	}
}
