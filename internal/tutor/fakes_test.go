package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"

	"course-pilot/internal/memory"
	"course-pilot/internal/models"
	"course-pilot/internal/planner"
	"course-pilot/internal/utils"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	mu      sync.Mutex
	users   map[string][]byte
	failing error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{users: map[string][]byte{}}
}

func (r *fakeRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, r.failing
	}
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

func (r *fakeRepository) GetOrCreateUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil || u != nil {
		return u, err
	}
	return models.NewUser(userID), nil
}

func (r *fakeRepository) SaveUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	user.Version++
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	r.users[user.UserID] = raw
	return nil
}

func (r *fakeRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	out := []*models.User{}
	for _, id := range ids {
		u, err := r.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

type completionCall struct {
	Context     string
	Instruction string
}

type fakeCompletion struct {
	answer string
	err    error
	calls  []completionCall
}

func (f *fakeCompletion) Complete(ctx context.Context, contextText, instruction string) (string, error) {
	f.calls = append(f.calls, completionCall{Context: contextText, Instruction: instruction})
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(data []byte, mimeType string) (string, error) {
	return f.text, f.err
}

type pushed struct {
	To      string
	Message string
}

type fakeLine struct {
	pushes  []pushed
	replies []pushed
	failFor string
	events  []*linebot.Event
}

func (f *fakeLine) ReplyMessage(replyToken, message string) error {
	f.replies = append(f.replies, pushed{To: replyToken, Message: message})
	return nil
}

func (f *fakeLine) PushMessage(to, message string) error {
	if to == f.failFor {
		return errors.New("push rejected")
	}
	f.pushes = append(f.pushes, pushed{To: to, Message: message})
	return nil
}

func (f *fakeLine) ParseRequest(req *http.Request) ([]*linebot.Event, error) {
	return f.events, nil
}

type fakeScheduler struct {
	scheduled   map[string]string
	triggered   []string
	scheduleErr error
}

func (f *fakeScheduler) ScheduleDailyReminder(ctx context.Context, userID, reminderTime string) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	if f.scheduled == nil {
		f.scheduled = map[string]string{}
	}
	f.scheduled[userID] = reminderTime
	return nil
}

func (f *fakeScheduler) TriggerReminder(ctx context.Context, userID string) error {
	f.triggered = append(f.triggered, userID)
	return nil
}

type fixture struct {
	svc        *Service
	repo       *fakeRepository
	completion *fakeCompletion
	line       *fakeLine
	scheduler  *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	prompt, err := utils.LoadPilotPrompt()
	require.NoError(t, err)

	f := &fixture{
		repo:       newFakeRepository(),
		completion: &fakeCompletion{answer: "model answer"},
		line:       &fakeLine{},
		scheduler:  &fakeScheduler{},
	}
	f.svc = NewService(entry, Deps{
		Repo:       f.repo,
		Updater:    memory.NewUpdater(entry, f.repo, planner.New(planner.Config{SlotsPerDay: 4})),
		Advisor:    planner.NewAdvisor(nil),
		Completion: f.completion,
		Prompt:     prompt,
		Extractor:  fakeExtractor{text: "Chapter 1: Limits and continuity"},
		Scheduler:  f.scheduler,
		Line:       f.line,
	})
	return f
}
