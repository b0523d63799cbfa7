package utils

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

//go:embed prompt/course_pilot.yaml
var coursePilotYAML []byte

// FallbackMessage replaces the answer when the completion service gives up.
const FallbackMessage = "⚠️ AI service temporarily unavailable. Please try again."

type PilotPrompt struct {
	SystemPrompt string            `yaml:"system_prompt"`
	UserTemplate string            `yaml:"user_template"`
	Tasks        map[string]string `yaml:"tasks"`
	Instructions map[string]string `yaml:"instructions"`
}

func LoadPilotPrompt() (PilotPrompt, error) {
	var prompt PilotPrompt
	if err := yaml.Unmarshal(coursePilotYAML, &prompt); err != nil {
		return PilotPrompt{}, fmt.Errorf("error parsing prompt yaml: %w", err)
	}
	return prompt, nil
}

// Task returns the instruction text for an AI task type, falling back to the
// default task.
func (p PilotPrompt) Task(taskType string) string {
	if t, ok := p.Tasks[taskType]; ok {
		return t
	}
	return p.Tasks["default"]
}

// Instruction renders a named instruction, substituting {{.Key}} variables.
func (p PilotPrompt) Instruction(name string, vars map[string]string) string {
	return render(p.Instructions[name], vars)
}

func render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{."+k+"}}", v)
	}
	return tmpl
}

type CompletionAPI interface {
	Complete(ctx context.Context, contextText string, instruction string) (string, error)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenaiConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxAttempts    int
	InitialBackoff time.Duration
	ContextLimit   int
}

type OpenaiClient struct {
	logger         *logrus.Entry
	client         chatCompleter
	prompt         PilotPrompt
	model          string
	maxAttempts    int
	initialBackoff time.Duration
	contextLimit   int
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewOpenAIClient(logger *logrus.Entry, cfg OpenaiConfig) (CompletionAPI, error) {
	prompt, err := LoadPilotPrompt()
	if err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return newOpenaiClient(logger, openai.NewClientWithConfig(config), prompt, cfg), nil
}

func newOpenaiClient(logger *logrus.Entry, client chatCompleter, prompt PilotPrompt, cfg OpenaiConfig) *OpenaiClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &OpenaiClient{
		logger:         logger,
		client:         client,
		prompt:         prompt,
		model:          cfg.Model,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		contextLimit:   cfg.ContextLimit,
		sleep:          sleepContext,
	}
}

// Complete asks the model to carry out instruction over contextText. Only
// rate-limit failures are retried, with a doubling delay between attempts.
func (c *OpenaiClient) Complete(ctx context.Context, contextText string, instruction string) (string, error) {
	if c.contextLimit > 0 {
		contextText = Truncate(contextText, c.contextLimit)
	}
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: c.prompt.SystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: render(c.prompt.UserTemplate, map[string]string{
					"Instruction": instruction,
					"Context":     contextText,
				}),
			},
		},
	}

	backoff := c.initialBackoff
	for attempt := 1; ; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("OpenAI API returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		}

		if !IsRateLimited(err) {
			return "", fmt.Errorf("OpenAI API error: %w", err)
		}
		if attempt >= c.maxAttempts {
			return "", fmt.Errorf("OpenAI API still rate limited after %d attempts: %w", attempt, err)
		}

		c.logger.WithFields(logrus.Fields{
			"attempt":     attempt,
			"maxAttempts": c.maxAttempts,
			"sleep":       backoff.String(),
		}).WithError(err).Warn("Completion rate limited, retrying")

		if err := c.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}
}

// IsRateLimited reports whether err is an HTTP 429 from the completion API.
func IsRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SimulatedCompletion answers without a model when no API key is configured.
type SimulatedCompletion struct{}

func (SimulatedCompletion) Complete(_ context.Context, _ string, instruction string) (string, error) {
	return fmt.Sprintf("[Simulation Mode] (Add AI_API_KEY to enable the real model)\n\nHere is your %s for the uploaded material.", instruction), nil
}
