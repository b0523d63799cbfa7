package tutor

import (
	"context"
	"errors"
	"testing"

	"course-pilot/internal/memory"
	"course-pilot/internal/models"
	"course-pilot/internal/planner"
	"course-pilot/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("records subject and returns memory", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ReportQuiz(ctx, "ada@example.com", "MTH101", 40, "Integration")
		require.NoError(t, err)

		res := f.svc.Generate(ctx, GenerateRequest{
			UserID:    "ada@example.com",
			SubjectID: "MTH101",
			Type:      "explain",
			Text:      "Integration by parts",
			IsCore:    true,
			Lecturer:  "Dr. Okafor",
		})

		assert.Equal(t, "model answer", res.Result)
		assert.Equal(t, []string{"Integration"}, res.Weaknesses)
		assert.NotEmpty(t, res.Timetable)
		assert.False(t, res.ExamMode)
		require.NotNil(t, res.Suggestion)
		assert.Equal(t, planner.ActionReviewBasics, res.Suggestion.Action)

		require.Len(t, f.completion.calls, 1)
		assert.Equal(t, "Integration by parts", f.completion.calls[0].Context)
		assert.Contains(t, f.completion.calls[0].Instruction, "Dr. Okafor")
	})

	t.Run("defaults guest user and General subject", func(t *testing.T) {
		f := newFixture(t)

		f.svc.Generate(ctx, GenerateRequest{Type: "summarize", Text: "notes"})

		user, err := f.repo.GetUser(ctx, GuestUserID)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.NotNil(t, user.Subject(models.GeneralTopic))
	})

	t.Run("storage failure still answers", func(t *testing.T) {
		f := newFixture(t)
		f.repo.failing = errors.New("dynamodb down")

		res := f.svc.Generate(ctx, GenerateRequest{UserID: "u1", SubjectID: "MTH101", Type: "quiz", Text: "t"})

		assert.Equal(t, "model answer", res.Result)
		assert.Nil(t, res.Suggestion)
		assert.Equal(t, []string{}, res.Weaknesses)
		assert.Equal(t, []models.TimetableSlot{}, res.Timetable)
	})

	t.Run("completion failure becomes fallback message", func(t *testing.T) {
		f := newFixture(t)
		f.completion.err = errors.New("429 after retries")

		res := f.svc.Generate(ctx, GenerateRequest{UserID: "u1", SubjectID: "MTH101", Text: "t"})

		assert.Equal(t, utils.FallbackMessage, res.Result)
	})
}

func TestChat(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a message", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Chat(ctx, ChatRequest{UserID: "u1"})
		assert.ErrorIs(t, err, ErrMissingMessage)
	})

	t.Run("answers with subject weaknesses", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ReportQuiz(ctx, "u1", "PHY101", 20, "Kinematics")
		require.NoError(t, err)

		res, err := f.svc.Chat(ctx, ChatRequest{UserID: "u1", SubjectID: "PHY101", Message: "Explain velocity", TextContext: "Velocity is..."})

		require.NoError(t, err)
		assert.Equal(t, "model answer", res.Result)
		assert.Equal(t, []string{"Kinematics"}, res.Weaknesses)
		assert.Contains(t, f.completion.calls[0].Instruction, "LaTeX")
		assert.Equal(t, "Velocity is...", f.completion.calls[0].Context)
	})

	t.Run("storage failure degrades", func(t *testing.T) {
		f := newFixture(t)
		f.repo.failing = errors.New("dynamodb down")

		res, err := f.svc.Chat(ctx, ChatRequest{UserID: "u1", Message: "hi"})

		require.NoError(t, err)
		assert.Equal(t, "model answer", res.Result)
		assert.Nil(t, res.Suggestion)
		assert.Empty(t, res.Weaknesses)
	})
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("records material once", func(t *testing.T) {
		f := newFixture(t)
		req := UploadRequest{UserID: "u1", SubjectID: "MTH101", FileName: "week1.pdf", MimeType: "application/pdf", Data: []byte("%PDF-")}

		res, err := f.svc.Upload(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "Chapter 1: Limits and continuity", res.TextPreview)
		require.Len(t, res.Materials, 1)
		assert.Equal(t, DefaultLessonTitle, res.Materials[0].LessonTitle)
		assert.Equal(t, "Chapter 1: Limits and continuity", res.Materials[0].Preview)

		res, err = f.svc.Upload(ctx, req)
		require.NoError(t, err)
		assert.Len(t, res.Materials, 1)
	})

	t.Run("without ids only extracts", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.Upload(ctx, UploadRequest{FileName: "a.pdf", Data: []byte("x")})

		require.NoError(t, err)
		assert.Empty(t, res.Materials)
		assert.Empty(t, f.repo.users)
	})

	t.Run("extraction failure uses placeholder", func(t *testing.T) {
		f := newFixture(t)
		f.svc.Extractor = fakeExtractor{err: errors.New("corrupt pdf")}

		res, err := f.svc.Upload(ctx, UploadRequest{UserID: "u1", SubjectID: "MTH101", LessonTitle: "Week 2", FileName: "bad.pdf", Data: []byte("x")})

		require.NoError(t, err)
		assert.Equal(t, utils.Truncate(utils.SimulatedExtraction, 200), res.TextPreview)
		assert.Equal(t, "Week 2", res.Materials[0].LessonTitle)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Upload(ctx, UploadRequest{UserID: "u1"})
		assert.ErrorIs(t, err, ErrMissingFile)
	})
}

func TestReportQuiz_ValidatesScore(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ReportQuiz(context.Background(), "u1", "MTH101", 101, "")
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestMaterialsAndAnalytics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, name := range []string{"one.pdf", "two.pdf"} {
		_, err := f.svc.Upload(ctx, UploadRequest{UserID: "u1", SubjectID: "MTH101", FileName: name, Data: []byte("x")})
		require.NoError(t, err)
	}
	_, err := f.svc.ReportQuiz(ctx, "u1", "MTH101", 45, "Integration")
	require.NoError(t, err)
	_, err = f.svc.ReportQuiz(ctx, "u1", "CHM101", 30, "")
	require.NoError(t, err)

	materials, err := f.svc.Materials(ctx, "u1", "MTH101")
	require.NoError(t, err)
	require.Len(t, materials, 2)
	assert.Equal(t, "two.pdf", materials[0].Name)

	materials, err = f.svc.Materials(ctx, "nobody", "MTH101")
	require.NoError(t, err)
	assert.Empty(t, materials)

	stats, err := f.svc.Analytics(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stats.History, 2)
	assert.Equal(t, "MTH101", stats.History[0].Subject)
	assert.Equal(t, 45.0, stats.History[0].Score)
	assert.Equal(t, "CHM101", stats.History[1].Subject)
	assert.Equal(t, []string{"Integration", "General"}, stats.Weaknesses)

	_, err = f.svc.Analytics(ctx, "")
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestToggleExamAndTimetable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.Updater.UpdateMemory(ctx, "u1", "MTH101", memory.ActionInit, memory.Data{IsCore: true})
	require.NoError(t, err)

	user, err := f.svc.ToggleExam(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, user.Profile.ExamMode)
	assert.Len(t, user.Timetable, 4)

	custom := []models.TimetableSlot{{Day: "Sun", Time: "8:00 PM", Subject: "MTH101", Focus: "Mock exam"}}
	require.NoError(t, f.svc.UpdateTimetable(ctx, "u1", custom))

	stored, err := f.repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, custom, stored.Timetable)
}

func TestUpdateSettings_SchedulesReminder(t *testing.T) {
	ctx := context.Background()

	t.Run("both fields set", func(t *testing.T) {
		f := newFixture(t)
		at, line := "07:30", "U42"

		res, err := f.svc.UpdateSettings(ctx, "u1", memory.Settings{ReminderTime: &at, LineUserID: &line})

		require.NoError(t, err)
		assert.True(t, res.ReminderScheduled)
		assert.Equal(t, map[string]string{"u1": "07:30"}, f.scheduler.scheduled)
		assert.Equal(t, []string{"u1"}, f.scheduler.triggered)
	})

	t.Run("no LINE id", func(t *testing.T) {
		f := newFixture(t)
		at := "07:30"

		res, err := f.svc.UpdateSettings(ctx, "u1", memory.Settings{ReminderTime: &at})

		require.NoError(t, err)
		assert.False(t, res.ReminderScheduled)
		assert.Empty(t, f.scheduler.scheduled)
	})

	t.Run("scheduler failure keeps settings", func(t *testing.T) {
		f := newFixture(t)
		f.scheduler.scheduleErr = errors.New("access denied")
		at, line := "07:30", "U42"

		res, err := f.svc.UpdateSettings(ctx, "u1", memory.Settings{ReminderTime: &at, LineUserID: &line})

		require.NoError(t, err)
		assert.False(t, res.ReminderScheduled)
		assert.Equal(t, "U42", res.Profile.LineUserID)
		assert.Empty(t, f.scheduler.triggered)
	})

	t.Run("invalid pace", func(t *testing.T) {
		f := newFixture(t)
		pace := models.StudyPace("sprint")
		_, err := f.svc.UpdateSettings(ctx, "u1", memory.Settings{StudyPace: &pace})
		assert.ErrorIs(t, err, memory.ErrInvalidStudyPace)
	})
}

func TestNotify(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Notify(context.Background(), "U42", "Exam tomorrow"))
	assert.Equal(t, []pushed{{To: "U42", Message: "Exam tomorrow"}}, f.line.pushes)

	f.svc.Line = nil
	assert.ErrorIs(t, f.svc.Notify(context.Background(), "U42", "x"), ErrNotifyUnavailable)
}
