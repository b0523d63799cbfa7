package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"course-pilot/internal/memory"
	"course-pilot/internal/models"
	"course-pilot/internal/planner"
	"course-pilot/internal/tutor"
	"course-pilot/internal/utils"

	"github.com/aws/aws-lambda-go/events"
	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channelSecret = "test-channel-secret"

type memoryRepo struct {
	mu    sync.Mutex
	users map[string][]byte
}

func (r *memoryRepo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *memoryRepo) GetOrCreateUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil || u != nil {
		return u, err
	}
	return models.NewUser(userID), nil
}

func (r *memoryRepo) SaveUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Version++
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	r.users[user.UserID] = raw
	return nil
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]*models.User, error) {
	return []*models.User{}, nil
}

// signedLine parses webhooks with a real SDK client and records replies.
type signedLine struct {
	client  *linebot.Client
	replies []string
}

func (l *signedLine) ReplyMessage(replyToken, message string) error {
	l.replies = append(l.replies, message)
	return nil
}

func (l *signedLine) PushMessage(to, message string) error { return nil }

func (l *signedLine) ParseRequest(req *http.Request) ([]*linebot.Event, error) {
	return l.client.ParseRequest(req)
}

type quietCompletion struct {
	instructions []string
}

func (c *quietCompletion) Complete(ctx context.Context, contextText, instruction string) (string, error) {
	c.instructions = append(c.instructions, instruction)
	return "Here is the explanation.", nil
}

type fixture struct {
	handler    *Handler
	repo       *memoryRepo
	line       *signedLine
	completion *quietCompletion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	client, err := linebot.New(channelSecret, "test-token")
	require.NoError(t, err)
	prompt, err := utils.LoadPilotPrompt()
	require.NoError(t, err)

	f := &fixture{
		repo:       &memoryRepo{users: map[string][]byte{}},
		line:       &signedLine{client: client},
		completion: &quietCompletion{},
	}
	svc := tutor.NewService(entry, tutor.Deps{
		Repo:       f.repo,
		Updater:    memory.NewUpdater(entry, f.repo, planner.New(planner.Config{})),
		Advisor:    planner.NewAdvisor(nil),
		Completion: f.completion,
		Prompt:     prompt,
		Extractor:  utils.NewPDFExtractor(),
		Line:       f.line,
	})
	f.handler, err = NewHandler(entry, svc)
	require.NoError(t, err)
	return f
}

func webhook(t *testing.T, evts ...string) events.APIGatewayProxyRequest {
	t.Helper()
	body := fmt.Sprintf(`{"destination":"Ubot","events":[%s]}`, strings.Join(evts, ","))
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write([]byte(body))
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Headers:    map[string]string{"x-line-signature": base64.StdEncoding.EncodeToString(mac.Sum(nil))},
		Body:       body,
	}
}

func textEvent(userID, text string) string {
	msg, _ := json.Marshal(text)
	return fmt.Sprintf(`{"type":"message","mode":"active","timestamp":1700000000000,"replyToken":"r-%s","source":{"type":"user","userId":"%s"},"message":{"type":"text","id":"1","text":%s}}`, userID, userID, msg)
}

func followEvent(userID string) string {
	return fmt.Sprintf(`{"type":"follow","mode":"active","timestamp":1700000000000,"replyToken":"r-%s","source":{"type":"user","userId":"%s"}}`, userID, userID)
}

func (f *fixture) send(t *testing.T, req events.APIGatewayProxyRequest) int {
	t.Helper()
	resp, err := f.handler.EventHandler(context.Background(), req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestEventHandler_RejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	req := webhook(t, textEvent("U1", "hi"))
	req.Headers["x-line-signature"] = "forged"

	assert.Equal(t, http.StatusBadRequest, f.send(t, req))
	assert.Empty(t, f.line.replies)
}

func TestEventHandler_FollowLinksAccount(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.send(t, webhook(t, followEvent("U1"))))

	require.Len(t, f.line.replies, 1)
	assert.Contains(t, f.line.replies[0], "Course Pilot")
	user, err := f.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", user.Profile.LineUserID)
}

func TestEventHandler_ChatUsesSubjectPrefix(t *testing.T) {
	f := newFixture(t)

	f.send(t, webhook(t, textEvent("U1", "mth 101: what is a limit?")))

	require.Len(t, f.line.replies, 1)
	assert.True(t, strings.HasPrefix(f.line.replies[0], "Here is the explanation."))
	require.Len(t, f.completion.instructions, 1)
	assert.True(t, strings.HasPrefix(f.completion.instructions[0], "what is a limit?"))
	assert.Contains(t, f.completion.instructions[0], "LaTeX")

	user, err := f.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.NotNil(t, user.Subject("MTH101"))
}

func TestEventHandler_ChatWithoutPrefixGoesToGeneral(t *testing.T) {
	f := newFixture(t)

	f.send(t, webhook(t, textEvent("U1", "How should I plan my week?")))

	user, err := f.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.NotNil(t, user.Subject(models.GeneralTopic))
}

func TestEventHandler_Commands(t *testing.T) {
	f := newFixture(t)

	f.send(t, webhook(t,
		textEvent("U1", "/quiz chm101 35 Moles"),
		textEvent("U1", "/exam on"),
		textEvent("U1", "/plan"),
		textEvent("U1", "/remind 7pm"),
		textEvent("U1", "/remind 19:00"),
		textEvent("U1", "/quiz chm101 abc"),
		textEvent("U1", "/dance"),
	))

	require.Len(t, f.line.replies, 7)
	assert.Equal(t, "✅ Saved CHM101 score 35.\nTopics to revisit: Moles", f.line.replies[0])
	assert.Contains(t, f.line.replies[1], "Exam mode is on")
	assert.Contains(t, f.line.replies[2], "Study plan for")
	assert.Contains(t, f.line.replies[3], "HH:MM")
	assert.Contains(t, f.line.replies[4], "not available")
	assert.Contains(t, f.line.replies[5], "between 0 and 100")
	assert.Contains(t, f.line.replies[6], "Unknown command")

	user, err := f.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, user.Profile.ExamMode)
	assert.Equal(t, "19:00", user.Profile.ReminderTime)
	assert.Equal(t, "U1", user.Profile.LineUserID)
}
