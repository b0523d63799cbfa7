package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Reminders is the part of the tutor service this function needs.
type Reminders interface {
	SendReminder(ctx context.Context, userID string) error
	SendAllReminders(ctx context.Context) (int, error)
}

type Handler struct {
	logger    *logrus.Entry
	reminders Reminders
}

func NewHandler(logger *logrus.Entry, reminders Reminders) (*Handler, error) {
	if reminders == nil {
		return nil, errors.New("reminder sender is required")
	}
	return &Handler{logger: logger, reminders: reminders}, nil
}

// HandleReminder sends one user's reminder, or everyone's when no userId is
// given. Failures are reported in the result rather than as Lambda errors
// so the scheduler does not retry a push that may have partly succeeded.
func (h *Handler) HandleReminder(ctx context.Context, request map[string]string) (map[string]interface{}, error) {
	userID := request["userId"]

	if userID == "" {
		h.logger.Info("Received reminder request for all users")
		sent, err := h.reminders.SendAllReminders(ctx)
		if err != nil {
			h.logger.WithError(err).Error("Failed to send reminders")
			return map[string]interface{}{
				"status":  "error",
				"message": "Failed to send reminders",
			}, nil
		}
		h.logger.WithField("count", sent).Info("Successfully sent reminders")
		return map[string]interface{}{
			"status":  "success",
			"message": "Reminders sent",
			"data":    map[string]interface{}{"count": sent},
		}, nil
	}

	logger := h.logger.WithField("userId", userID)
	logger.Info("Received reminder request")
	if err := h.reminders.SendReminder(ctx, userID); err != nil {
		logger.WithError(err).Error("Failed to send reminder")
		return map[string]interface{}{
			"status":  "error",
			"message": "Failed to send reminder",
		}, nil
	}

	logger.Info("Successfully sent reminder")
	return map[string]interface{}{
		"status":  "success",
		"message": "Reminder sent",
		"data":    map[string]interface{}{"userId": userID},
	}, nil
}
