package tutor

import (
	"regexp"
	"strings"

	"course-pilot/internal/models"
	"course-pilot/internal/utils"
)

const TaskQuiz = "quiz"

var (
	mathSubjectPrefixes = []string{"MTH", "PHY", "ENG"}
	mathMessage         = regexp.MustCompile(`(?i)math|calc|integral|deriv|equation|formula`)
)

// generateInstruction assembles the user query for an AI generate call.
func generateInstruction(p utils.PilotPrompt, taskType, focusTopic, lecturer string, examMode bool) string {
	task := p.Task(taskType)
	if _, known := p.Tasks[taskType]; !known && strings.TrimSpace(taskType) != "" {
		task = taskType
	}

	parts := []string{task}
	if focusTopic != "" {
		parts = append(parts, p.Instruction("focus", map[string]string{"Focus": focusTopic}))
	}
	parts = append(parts, p.Instruction("math", nil))
	if taskType == TaskQuiz {
		parts = append(parts, p.Instruction("quiz_json", nil))
	}

	ctx := []string{p.Instruction("normal_mode", nil)}
	if examMode {
		ctx[0] = p.Instruction("exam_mode", nil)
	}
	if l := lecturerInstruction(p, lecturer); l != "" {
		ctx = append(ctx, l)
	}
	return strings.Join(parts, " ") + "\nCONTEXT: " + strings.Join(ctx, " ")
}

// chatInstruction wraps a free-form student message.
func chatInstruction(p utils.PilotPrompt, subjectID, message, focusTopic, lecturer string) string {
	parts := []string{message}
	if focusTopic != "" {
		parts = append(parts, p.Instruction("focus", map[string]string{"Focus": focusTopic}))
	}
	if isMathContext(subjectID, message) {
		parts = append(parts, p.Instruction("math", nil))
	}
	if l := lecturerInstruction(p, lecturer); l != "" {
		parts = append(parts, l)
	}
	return strings.Join(parts, " ")
}

func isMathContext(subjectID, message string) bool {
	for _, prefix := range mathSubjectPrefixes {
		if strings.Contains(subjectID, prefix) {
			return true
		}
	}
	return mathMessage.MatchString(message)
}

func lecturerInstruction(p utils.PilotPrompt, lecturer string) string {
	if lecturer == "" || lecturer == models.DefaultLecturer {
		return ""
	}
	return p.Instruction("lecturer", map[string]string{"Lecturer": lecturer})
}
