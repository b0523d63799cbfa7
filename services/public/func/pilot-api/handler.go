package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"course-pilot/internal/config"
	"course-pilot/internal/memory"
	"course-pilot/internal/models"
	"course-pilot/internal/tutor"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxUploadSize = 10 << 20

type Handler struct {
	logger *logrus.Entry
	cors   config.CORSConfig
	svc    *tutor.Service
	routes map[string]route
}

type route struct {
	method string
	handle func(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse
}

func NewHandler(logger *logrus.Entry, cors config.CORSConfig, svc *tutor.Service) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("tutor service is required")
	}
	h := &Handler{logger: logger, cors: cors, svc: svc}
	h.routes = map[string]route{
		"health":           {http.MethodGet, h.handleHealth},
		"upload":           {http.MethodPost, h.handleUpload},
		"ai":               {http.MethodPost, h.handleGenerate},
		"chat":             {http.MethodPost, h.handleChat},
		"report_quiz":      {http.MethodPost, h.handleReportQuiz},
		"toggle_exam":      {http.MethodPost, h.handleToggleExam},
		"update_timetable": {http.MethodPost, h.handleUpdateTimetable},
		"materials":        {http.MethodGet, h.handleMaterials},
		"analytics":        {http.MethodGet, h.handleAnalytics},
		"settings":         {http.MethodPost, h.handleSettings},
		"notify":           {http.MethodPost, h.handleNotify},
	}
	return h, nil
}

func (h *Handler) EventHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := h.logger.WithFields(logrus.Fields{
		"requestId": requestID,
		"method":    request.HTTPMethod,
		"path":      request.Path,
	})

	if request.HTTPMethod == http.MethodOptions {
		return h.response(http.StatusOK, ""), nil
	}

	name := routeName(request.Path)
	r, ok := h.routes[name]
	if !ok {
		return h.errorResponse(http.StatusNotFound, "Not found"), nil
	}
	if request.HTTPMethod != r.method {
		return h.errorResponse(http.StatusMethodNotAllowed, "Method not allowed"), nil
	}

	logger.Info("Handling request")
	return r.handle(ctx, logger, request), nil
}

// routeName maps "/api/report_quiz" or "/prod/api/report_quiz/" to
// "report_quiz".
func routeName(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

func (h *Handler) handleHealth(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	return h.jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
}

type generateBody struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	UserID     string `json:"userId"`
	SubjectID  string `json:"subjectId"`
	FocusTopic string `json:"focusTopic"`
	IsCore     bool   `json:"isCore"`
	Lecturer   string `json:"lecturer"`
}

func (h *Handler) handleGenerate(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body generateBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	return h.jsonResponse(http.StatusOK, h.svc.Generate(ctx, tutor.GenerateRequest{
		UserID:     body.UserID,
		SubjectID:  body.SubjectID,
		Type:       body.Type,
		Text:       body.Text,
		FocusTopic: body.FocusTopic,
		IsCore:     body.IsCore,
		Lecturer:   body.Lecturer,
	}))
}

type chatBody struct {
	Message     string `json:"message"`
	UserID      string `json:"userId"`
	SubjectID   string `json:"subjectId"`
	FocusTopic  string `json:"focusTopic"`
	Lecturer    string `json:"lecturer"`
	TextContext string `json:"textContext"`
}

func (h *Handler) handleChat(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body chatBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	res, err := h.svc.Chat(ctx, tutor.ChatRequest{
		UserID:      body.UserID,
		SubjectID:   body.SubjectID,
		Message:     body.Message,
		TextContext: body.TextContext,
		FocusTopic:  body.FocusTopic,
		Lecturer:    body.Lecturer,
	})
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, res)
}

func (h *Handler) handleUpload(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	httpReq, err := h.RequestParser(req)
	if err != nil {
		logger.WithError(err).Error("Failed to build upload request")
		return h.errorResponse(http.StatusBadRequest, "Bad request")
	}
	if err := httpReq.ParseMultipartForm(maxUploadSize); err != nil {
		logger.WithError(err).Warn("Failed to parse multipart form")
		return h.errorResponse(http.StatusBadRequest, "Invalid multipart body")
	}

	file, header, err := httpReq.FormFile("file")
	if err != nil {
		return h.errorResponse(http.StatusBadRequest, tutor.ErrMissingFile.Error())
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return h.fail(logger, fmt.Errorf("failed to read upload: %w", err))
	}

	res, err := h.svc.Upload(ctx, tutor.UploadRequest{
		UserID:      httpReq.FormValue("userId"),
		SubjectID:   httpReq.FormValue("subjectId"),
		LessonTitle: httpReq.FormValue("lessonTitle"),
		FileName:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, res)
}

type reportQuizBody struct {
	UserID     string   `json:"userId"`
	SubjectID  string   `json:"subjectId"`
	Score      *float64 `json:"score"`
	FocusTopic string   `json:"focusTopic"`
}

func (h *Handler) handleReportQuiz(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body reportQuizBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	if body.UserID == "" || body.SubjectID == "" {
		return h.errorResponse(http.StatusBadRequest, memory.ErrMissingID.Error())
	}
	if body.Score == nil {
		return h.errorResponse(http.StatusBadRequest, "score is required")
	}

	res, err := h.svc.ReportQuiz(ctx, body.UserID, body.SubjectID, *body.Score, body.FocusTopic)
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, map[string]interface{}{
		"success":    true,
		"timetable":  res.Timetable,
		"weaknesses": res.Weaknesses,
	})
}

type toggleExamBody struct {
	UserID  string `json:"userId"`
	Enabled bool   `json:"enabled"`
}

func (h *Handler) handleToggleExam(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body toggleExamBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	if body.UserID == "" {
		return h.errorResponse(http.StatusBadRequest, tutor.ErrMissingUserID.Error())
	}

	user, err := h.svc.ToggleExam(ctx, body.UserID, body.Enabled)
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, map[string]interface{}{
		"success":   true,
		"examMode":  user.Profile.ExamMode,
		"timetable": user.Timetable,
	})
}

type updateTimetableBody struct {
	UserID       string                  `json:"userId"`
	NewTimetable *[]models.TimetableSlot `json:"newTimetable"`
}

func (h *Handler) handleUpdateTimetable(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body updateTimetableBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	if body.UserID == "" || body.NewTimetable == nil {
		return h.errorResponse(http.StatusBadRequest, "userId and newTimetable are required")
	}

	if err := h.svc.UpdateTimetable(ctx, body.UserID, *body.NewTimetable); err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleMaterials(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	userID := req.QueryStringParameters["userId"]
	subjectID := req.QueryStringParameters["subjectId"]
	if userID == "" || subjectID == "" {
		return h.errorResponse(http.StatusBadRequest, "Missing params")
	}

	materials, err := h.svc.Materials(ctx, userID, subjectID)
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, map[string]interface{}{"materials": materials})
}

func (h *Handler) handleAnalytics(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	res, err := h.svc.Analytics(ctx, req.QueryStringParameters["userId"])
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, res)
}

type settingsBody struct {
	UserID        string            `json:"userId"`
	Name          *string           `json:"name"`
	StudyPace     *models.StudyPace `json:"studyPace"`
	PreferredTime *string           `json:"preferredTime"`
	LineUserID    *string           `json:"lineUserId"`
	ReminderTime  *string           `json:"reminderTime"`
}

func (h *Handler) handleSettings(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body settingsBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	if body.UserID == "" {
		return h.errorResponse(http.StatusBadRequest, tutor.ErrMissingUserID.Error())
	}

	res, err := h.svc.UpdateSettings(ctx, body.UserID, memory.Settings{
		Name:          body.Name,
		StudyPace:     body.StudyPace,
		PreferredTime: body.PreferredTime,
		LineUserID:    body.LineUserID,
		ReminderTime:  body.ReminderTime,
	})
	if err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, res)
}

type notifyBody struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

func (h *Handler) handleNotify(ctx context.Context, logger *logrus.Entry, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body notifyBody
	if resp, ok := h.decode(logger, req, &body); !ok {
		return resp
	}
	if body.To == "" || body.Content == "" {
		return h.errorResponse(http.StatusBadRequest, "to and content are required")
	}

	if err := h.svc.Notify(ctx, body.To, body.Content); err != nil {
		return h.fail(logger, err)
	}
	return h.jsonResponse(http.StatusOK, map[string]interface{}{"success": true, "message": "Sent to LINE"})
}

// RequestParser rebuilds an *http.Request from the API Gateway event so the
// standard multipart reader can be used on it.
func (h *Handler) RequestParser(request events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode body: %w", err)
		}
		body = decoded
	}

	req, err := http.NewRequest(request.HTTPMethod, request.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = make(http.Header)
	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func (h *Handler) decode(logger *logrus.Entry, req events.APIGatewayProxyRequest, v interface{}) (events.APIGatewayProxyResponse, bool) {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.errorResponse(http.StatusBadRequest, "Bad request"), false
		}
		body = string(decoded)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		logger.WithError(err).Warn("Failed to decode request body")
		return h.errorResponse(http.StatusBadRequest, "Bad request"), false
	}
	return events.APIGatewayProxyResponse{}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, memory.ErrUnknownAction),
		errors.Is(err, memory.ErrMissingID),
		errors.Is(err, memory.ErrInvalidStudyPace),
		errors.Is(err, memory.ErrInvalidReminderTime),
		errors.Is(err, tutor.ErrMissingUserID),
		errors.Is(err, tutor.ErrMissingMessage),
		errors.Is(err, tutor.ErrMissingFile),
		errors.Is(err, tutor.ErrInvalidScore):
		return http.StatusBadRequest
	case errors.Is(err, tutor.ErrNotifyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(logger *logrus.Entry, err error) events.APIGatewayProxyResponse {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		return h.errorResponse(status, "Internal server error")
	}
	logger.WithError(err).Warn("Rejected request")
	return h.errorResponse(status, err.Error())
}

func (h *Handler) errorResponse(status int, message string) events.APIGatewayProxyResponse {
	return h.jsonResponse(status, map[string]string{"error": message})
}

func (h *Handler) jsonResponse(status int, v interface{}) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
		return h.response(http.StatusInternalServerError, `{"error":"Internal server error"}`)
	}
	return h.response(status, string(body))
}

func (h *Handler) response(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                     "application/json",
			"Access-Control-Allow-Origin":      h.cors.AllowedOrigins,
			"Access-Control-Allow-Methods":     h.cors.AllowedMethods,
			"Access-Control-Allow-Headers":     h.cors.AllowedHeaders,
			"Access-Control-Allow-Credentials": "true",
		},
		Body: body,
	}
}
