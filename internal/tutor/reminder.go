package tutor

import (
	"context"
	"fmt"
	"strings"

	"course-pilot/internal/models"

	"github.com/sirupsen/logrus"
)

// ReminderMessage is today's plan for the user plus the advisor's hint for
// the first subject on it.
func (s *Service) ReminderMessage(user *models.User) string {
	today := s.Advisor.Today()
	slots := models.SlotsOn(user.Timetable, today)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hi %s!\n\n", user.Profile.Name))
	sb.WriteString(models.FormatDailyPlan(today, slots))
	if len(slots) > 0 {
		if sug := s.Advisor.DecideNextAction(user, slots[0].Subject); sug != nil {
			sb.WriteString("\n")
			sb.WriteString(sug.Message)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// SendReminder pushes the daily reminder to one user. Users without a LINE
// id are skipped.
func (s *Service) SendReminder(ctx context.Context, userID string) error {
	if s.Line == nil {
		return ErrNotifyUnavailable
	}
	user, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userID)
	}
	return s.pushReminder(user)
}

// SendAllReminders pushes reminders to every user with a LINE id and returns
// how many were sent. One failed push does not stop the rest.
func (s *Service) SendAllReminders(ctx context.Context) (int, error) {
	if s.Line == nil {
		return 0, ErrNotifyUnavailable
	}
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		if user.Profile.LineUserID == "" {
			continue
		}
		if err := s.pushReminder(user); err != nil {
			s.logger.WithError(err).WithField("userId", user.UserID).Error("Failed to push reminder")
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) pushReminder(user *models.User) error {
	if user.Profile.LineUserID == "" {
		s.logger.WithField("userId", user.UserID).Info("No LINE id, skipping reminder")
		return nil
	}
	if err := s.Line.PushMessage(user.Profile.LineUserID, s.ReminderMessage(user)); err != nil {
		return fmt.Errorf("failed to push reminder: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"userId":     user.UserID,
		"lineUserId": user.Profile.LineUserID,
	}).Info("Sent study reminder")
	return nil
}
