package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"course-pilot/internal/memory"
	"course-pilot/internal/models"
	"course-pilot/internal/tutor"
	"course-pilot/internal/utils"

	"github.com/aws/aws-lambda-go/events"
	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
)

const greeting = `👋 Hi! I'm Course Pilot, your study assistant.

Ask me anything about your courses. Start with a course code to keep your notes per subject, e.g.
MTH101: what is a limit?

Commands:
• /plan - today's study plan
• /quiz CODE SCORE [topic] - record a quiz score
• /exam on|off - switch exam mode
• /remind HH:MM - daily reminder time
• /help - show this message`

var subjectPrefix = regexp.MustCompile(`^([A-Za-z]{2,4}\s?\d{2,4})\s*:\s*(.+)$`)

type Handler struct {
	logger *logrus.Entry
	svc    *tutor.Service
	line   utils.LinebotAPI
}

func NewHandler(logger *logrus.Entry, svc *tutor.Service) (*Handler, error) {
	if svc == nil || svc.Line == nil {
		return nil, errors.New("tutor service with LINE client is required")
	}
	return &Handler{logger: logger, svc: svc, line: svc.Line}, nil
}

func (h *Handler) EventHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	messageEvents, err := h.RequestParser(request)
	if err != nil {
		h.logger.WithError(err).Error("Failed to parse request")
		return events.APIGatewayProxyResponse{
			StatusCode: 400,
			Body:       "Bad Request",
		}, nil
	}

	for _, event := range messageEvents {
		if event.Source == nil {
			continue
		}
		userID := event.Source.UserID
		h.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"user_id":    userID,
		}).Info("event handling")

		switch event.Type {
		case linebot.EventTypeFollow:
			h.handleUserFollow(ctx, event.ReplyToken, userID)
		case linebot.EventTypeMessage:
			message, ok := event.Message.(*linebot.TextMessage)
			if !ok {
				continue
			}
			h.reply(event.ReplyToken, h.handleText(ctx, userID, strings.TrimSpace(message.Text)))
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Body:       "OK",
	}, nil
}

func (h *Handler) RequestParser(request events.APIGatewayProxyRequest) ([]*linebot.Event, error) {
	var bodyJSON interface{}
	if err := json.Unmarshal([]byte(request.Body), &bodyJSON); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	h.logger.WithField("webhook_body", bodyJSON).Debug("Received LINE webhook")

	req, err := http.NewRequest(http.MethodPost, "", bytes.NewBufferString(request.Body))
	if err != nil {
		return nil, err
	}
	req.Header = make(http.Header)
	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}
	return h.line.ParseRequest(req)
}

// handleUserFollow links the LINE account to a user record so reminders can
// be pushed to it.
func (h *Handler) handleUserFollow(ctx context.Context, replyToken, userID string) {
	h.logger.WithField("userID", userID).Info("User followed the bot")
	if _, err := h.svc.UpdateSettings(ctx, userID, memory.Settings{LineUserID: &userID}); err != nil {
		h.logger.WithError(err).WithField("userID", userID).Error("Failed to create initial user record")
	}
	h.reply(replyToken, greeting)
}

func (h *Handler) handleText(ctx context.Context, userID, text string) string {
	if !strings.HasPrefix(text, "/") {
		return h.handleChat(ctx, userID, text)
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/help":
		return greeting
	case "/plan":
		return h.handlePlan(ctx, userID)
	case "/quiz":
		return h.handleQuiz(ctx, userID, fields[1:])
	case "/exam":
		return h.handleExam(ctx, userID, fields[1:])
	case "/remind":
		return h.handleRemind(ctx, userID, fields[1:])
	default:
		return "❌ Unknown command. Type /help to see what I can do."
	}
}

// handleChat answers a question. "CODE: question" files it under that
// subject, anything else under General.
func (h *Handler) handleChat(ctx context.Context, userID, text string) string {
	subjectID, question := models.GeneralTopic, text
	if m := subjectPrefix.FindStringSubmatch(text); m != nil {
		subjectID = strings.ToUpper(strings.ReplaceAll(m[1], " ", ""))
		question = m[2]
	}

	res, err := h.svc.Chat(ctx, tutor.ChatRequest{UserID: userID, SubjectID: subjectID, Message: question})
	if err != nil {
		h.logger.WithError(err).Error("Failed to chat")
		return utils.FallbackMessage
	}
	if res.Suggestion != nil {
		return res.Result + "\n\n" + res.Suggestion.Message
	}
	return res.Result
}

func (h *Handler) handlePlan(ctx context.Context, userID string) string {
	user, err := h.svc.Repo.GetUser(ctx, userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get user")
		return "Sorry, I couldn't load your plan. Please try again later."
	}
	if user == nil {
		user = models.NewUser(userID)
	}
	return h.svc.ReminderMessage(user)
}

func (h *Handler) handleQuiz(ctx context.Context, userID string, args []string) string {
	if len(args) < 2 {
		return "Usage: /quiz CODE SCORE [topic]"
	}
	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "Score must be a number between 0 and 100."
	}
	subjectID := strings.ToUpper(args[0])
	topic := strings.Join(args[2:], " ")

	res, err := h.svc.ReportQuiz(ctx, userID, subjectID, score, topic)
	if errors.Is(err, tutor.ErrInvalidScore) {
		return "Score must be a number between 0 and 100."
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to report quiz")
		return "Sorry, I couldn't save that score. Please try again later."
	}

	msg := fmt.Sprintf("✅ Saved %s score %.0f.", subjectID, score)
	if len(res.Weaknesses) > 0 {
		msg += "\nTopics to revisit: " + strings.Join(res.Weaknesses, ", ")
	}
	return msg
}

func (h *Handler) handleExam(ctx context.Context, userID string, args []string) string {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return "Usage: /exam on|off"
	}
	user, err := h.svc.ToggleExam(ctx, userID, args[0] == "on")
	if err != nil {
		h.logger.WithError(err).Error("Failed to toggle exam mode")
		return "Sorry, I couldn't update exam mode. Please try again later."
	}
	if user.Profile.ExamMode {
		return "📝 Exam mode is on. Your timetable now favours high-yield practice."
	}
	return "Exam mode is off."
}

func (h *Handler) handleRemind(ctx context.Context, userID string, args []string) string {
	if len(args) != 1 {
		return "Usage: /remind HH:MM"
	}
	at := args[0]
	res, err := h.svc.UpdateSettings(ctx, userID, memory.Settings{ReminderTime: &at, LineUserID: &userID})
	if errors.Is(err, memory.ErrInvalidReminderTime) {
		return "Please use 24-hour HH:MM, e.g. /remind 20:30"
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update reminder")
		return "Sorry, I couldn't save your reminder. Please try again later."
	}
	if !res.ReminderScheduled {
		return fmt.Sprintf("Saved %s, but daily reminders are not available right now.", at)
	}
	return fmt.Sprintf("⏰ I'll send your study plan every day at %s.", at)
}

func (h *Handler) reply(replyToken, message string) {
	if err := h.line.ReplyMessage(replyToken, message); err != nil {
		h.logger.WithError(err).Error("Failed to reply message")
	}
}
