package tutor

import (
	"context"
	"errors"
	"fmt"

	"course-pilot/internal/memory"
	"course-pilot/internal/models"
	"course-pilot/internal/planner"
	"course-pilot/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	GuestUserID        = "guest@edu.com"
	DefaultLessonTitle = "General Note"

	materialPreviewSize = 500
	responsePreviewSize = 200
)

var (
	ErrMissingUserID     = errors.New("userId is required")
	ErrMissingMessage    = errors.New("message is required")
	ErrMissingFile       = errors.New("no file uploaded")
	ErrInvalidScore      = errors.New("score must be between 0 and 100")
	ErrNotifyUnavailable = errors.New("messaging is not configured")
)

// Deps are the collaborators of a Service. Scheduler and Line are optional.
type Deps struct {
	Repo       utils.UserRepository
	Updater    *memory.Updater
	Advisor    *planner.Advisor
	Completion utils.CompletionAPI
	Prompt     utils.PilotPrompt
	Extractor  utils.TextExtractor
	Scheduler  utils.ReminderScheduler
	Line       utils.LinebotAPI
}

// Service implements the tutoring operations behind the HTTP and LINE
// entry points.
type Service struct {
	logger *logrus.Entry
	Deps
}

func NewService(logger *logrus.Entry, deps Deps) *Service {
	return &Service{logger: logger, Deps: deps}
}

type GenerateRequest struct {
	UserID     string
	SubjectID  string
	Type       string
	Text       string
	FocusTopic string
	IsCore     bool
	Lecturer   string
}

type GenerateResult struct {
	Result     string                 `json:"result"`
	Suggestion *models.Suggestion     `json:"suggestion"`
	Weaknesses []string               `json:"weaknesses"`
	Timetable  []models.TimetableSlot `json:"timetable"`
	ExamMode   bool                   `json:"examMode"`
}

// Generate runs an AI task over the supplied text. Storage problems only
// cost the memory side of the answer.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) *GenerateResult {
	userID, subjectID := withDefaults(req.UserID, req.SubjectID)
	out := &GenerateResult{Weaknesses: []string{}, Timetable: []models.TimetableSlot{}}

	sub, user, err := s.Updater.UpdateMemory(ctx, userID, subjectID, memory.ActionInit, memory.Data{
		IsCore:   req.IsCore,
		Lecturer: req.Lecturer,
	})
	if err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("Memory update failed, answering without it")
	}

	lecturer := req.Lecturer
	examMode := false
	if sub != nil {
		lecturer = sub.Lecturer
	}
	if user != nil {
		examMode = user.Profile.ExamMode
	}

	instruction := generateInstruction(s.Prompt, req.Type, req.FocusTopic, lecturer, examMode)
	out.Result = s.complete(ctx, ExtractRelevantChunk(req.Text, req.FocusTopic), instruction)

	if user != nil {
		out.Suggestion = s.Advisor.DecideNextAction(user, subjectID)
		out.Weaknesses = sub.Weaknesses
		out.Timetable = user.Timetable
		out.ExamMode = user.Profile.ExamMode
	}
	return out
}

type ChatRequest struct {
	UserID      string
	SubjectID   string
	Message     string
	TextContext string
	FocusTopic  string
	Lecturer    string
}

type ChatResult struct {
	Result     string             `json:"result"`
	Suggestion *models.Suggestion `json:"suggestion"`
	Weaknesses []string           `json:"weaknesses"`
}

func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if req.Message == "" {
		return nil, ErrMissingMessage
	}
	userID, subjectID := withDefaults(req.UserID, req.SubjectID)
	out := &ChatResult{Weaknesses: []string{}}

	sub, user, err := s.Updater.UpdateMemory(ctx, userID, subjectID, memory.ActionChat, memory.Data{})
	if err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("Memory update failed, answering without it")
	}

	instruction := chatInstruction(s.Prompt, subjectID, req.Message, req.FocusTopic, req.Lecturer)
	out.Result = s.complete(ctx, ExtractRelevantChunk(req.TextContext, req.FocusTopic), instruction)

	if user != nil {
		out.Suggestion = s.Advisor.DecideNextAction(user, subjectID)
		out.Weaknesses = sub.Weaknesses
	}
	return out, nil
}

type UploadRequest struct {
	UserID      string
	SubjectID   string
	LessonTitle string
	FileName    string
	MimeType    string
	Data        []byte
}

type UploadResult struct {
	Success        bool              `json:"success"`
	TextPreview    string            `json:"textPreview"`
	FullTextLength int               `json:"fullTextLength"`
	Materials      []models.Material `json:"materials"`
}

// Upload extracts the text of a file and, when both ids are given, records
// it as a material of the subject.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.FileName == "" || len(req.Data) == 0 {
		return nil, ErrMissingFile
	}

	text, err := s.Extractor.ExtractText(req.Data, req.MimeType)
	if err != nil {
		s.logger.WithError(err).WithField("fileName", req.FileName).Warn("Text extraction failed")
		text = utils.SimulatedExtraction
	}

	out := &UploadResult{
		Success:        true,
		TextPreview:    utils.Truncate(text, responsePreviewSize),
		FullTextLength: len([]rune(text)),
		Materials:      []models.Material{},
	}
	if req.UserID == "" || req.SubjectID == "" {
		return out, nil
	}

	lessonTitle := req.LessonTitle
	if lessonTitle == "" {
		lessonTitle = DefaultLessonTitle
	}
	sub, _, err := s.Updater.UpdateMemory(ctx, req.UserID, req.SubjectID, memory.ActionUploadNotes, memory.Data{
		FileName:    req.FileName,
		Preview:     utils.Truncate(text, materialPreviewSize),
		LessonTitle: lessonTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}
	out.Materials = sub.Materials
	return out, nil
}

type QuizReport struct {
	Timetable  []models.TimetableSlot `json:"timetable"`
	Weaknesses []string               `json:"weaknesses"`
}

func (s *Service) ReportQuiz(ctx context.Context, userID, subjectID string, score float64, focusTopic string) (*QuizReport, error) {
	if score < 0 || score > 100 {
		return nil, ErrInvalidScore
	}
	sub, user, err := s.Updater.UpdateMemory(ctx, userID, subjectID, memory.ActionQuizResult, memory.Data{
		Score:      score,
		FocusTopic: focusTopic,
	})
	if err != nil {
		return nil, err
	}
	return &QuizReport{Timetable: user.Timetable, Weaknesses: sub.Weaknesses}, nil
}

func (s *Service) ToggleExam(ctx context.Context, userID string, enabled bool) (*models.User, error) {
	return s.Updater.ToggleExamMode(ctx, userID, enabled)
}

func (s *Service) UpdateTimetable(ctx context.Context, userID string, slots []models.TimetableSlot) error {
	_, err := s.Updater.OverrideTimetable(ctx, userID, slots)
	return err
}

// Materials lists a subject's materials, newest first. Unknown users and
// subjects have none.
func (s *Service) Materials(ctx context.Context, userID, subjectID string) ([]models.Material, error) {
	user, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []models.Material{}, nil
	}
	sub := user.Subject(subjectID)
	if sub == nil {
		return []models.Material{}, nil
	}
	return sub.MaterialsNewestFirst(), nil
}

type QuizHistoryEntry struct {
	Subject string `json:"subject"`
	models.QuizRecord
}

type Analytics struct {
	History    []QuizHistoryEntry `json:"history"`
	Weaknesses []string           `json:"weaknesses"`
}

func (s *Service) Analytics(ctx context.Context, userID string) (*Analytics, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	user, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Analytics{History: []QuizHistoryEntry{}, Weaknesses: []string{}}
	if user == nil {
		return out, nil
	}
	for _, sub := range user.Subjects {
		for _, rec := range sub.QuizHistory {
			out.History = append(out.History, QuizHistoryEntry{Subject: sub.Code, QuizRecord: rec})
		}
	}
	out.Weaknesses = user.Weaknesses()
	return out, nil
}

type SettingsResult struct {
	Profile           models.Profile `json:"profile"`
	ReminderScheduled bool           `json:"reminderScheduled"`
}

// UpdateSettings saves the profile changes and, when the user has both a
// reminder time and a LINE id, (re)creates the daily reminder and sends the
// first one right away.
func (s *Service) UpdateSettings(ctx context.Context, userID string, settings memory.Settings) (*SettingsResult, error) {
	user, err := s.Updater.UpdateSettings(ctx, userID, settings)
	if err != nil {
		return nil, err
	}
	out := &SettingsResult{Profile: user.Profile}

	p := user.Profile
	if s.Scheduler == nil || p.ReminderTime == "" || p.LineUserID == "" {
		return out, nil
	}

	logger := s.logger.WithFields(logrus.Fields{"userId": userID, "reminderTime": p.ReminderTime})
	if err := s.Scheduler.ScheduleDailyReminder(ctx, userID, p.ReminderTime); err != nil {
		logger.WithError(err).Error("Failed to schedule daily reminder")
		return out, nil
	}
	out.ReminderScheduled = true

	if err := s.Scheduler.TriggerReminder(ctx, userID); err != nil {
		logger.WithError(err).Warn("Failed to trigger immediate reminder")
	}
	return out, nil
}

// Notify pushes content to a LINE user.
func (s *Service) Notify(ctx context.Context, to, content string) error {
	if s.Line == nil {
		return ErrNotifyUnavailable
	}
	if err := s.Line.PushMessage(to, content); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	s.logger.WithField("to", to).Info("Sent notification")
	return nil
}

func (s *Service) complete(ctx context.Context, contextText, instruction string) string {
	result, err := s.Completion.Complete(ctx, contextText, instruction)
	if err != nil {
		s.logger.WithError(err).Error("AI completion failed")
		return utils.FallbackMessage
	}
	return result
}

func withDefaults(userID, subjectID string) (string, string) {
	if userID == "" {
		userID = GuestUserID
	}
	if subjectID == "" {
		subjectID = models.GeneralTopic
	}
	return userID, subjectID
}
