package app

import (
	"context"
	"fmt"

	"course-pilot/internal/config"
	"course-pilot/internal/memory"
	"course-pilot/internal/planner"
	"course-pilot/internal/repository"
	"course-pilot/internal/tutor"
	"course-pilot/internal/utils"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/sirupsen/logrus"
)

// NewTutor builds the tutoring service from configuration. DynamoDB is
// connected lazily on first use; LINE and reminders are only wired when
// configured.
func NewTutor(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (*tutor.Service, error) {
	prompt, err := utils.LoadPilotPrompt()
	if err != nil {
		return nil, err
	}

	var completion utils.CompletionAPI = utils.SimulatedCompletion{}
	if cfg.SimulateAI() {
		logger.Warn("AI_API_KEY is not set, using simulated answers")
	} else {
		completion, err = utils.NewOpenAIClient(logger, utils.OpenaiConfig{
			APIKey:         cfg.AI.APIKey,
			BaseURL:        cfg.AI.BaseURL,
			Model:          cfg.AI.Model,
			MaxAttempts:    cfg.AI.MaxAttempts,
			InitialBackoff: cfg.AI.InitialBackoff,
			ContextLimit:   cfg.AI.ContextLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AI client: %w", err)
		}
	}

	repo := repository.NewUserRepository(logger, utils.NewDefaultDynamoProvider(), cfg.Storage.UserTableName)
	p := planner.New(planner.Config{SlotsPerDay: cfg.Planner.SlotsPerDay})

	deps := tutor.Deps{
		Repo:       repo,
		Updater:    memory.NewUpdater(logger, repo, p),
		Advisor:    planner.NewAdvisor(cfg.Location()),
		Completion: completion,
		Prompt:     prompt,
		Extractor:  utils.NewPDFExtractor(),
	}

	if cfg.LineEnabled() {
		deps.Line, err = utils.NewLineBotClient(cfg.Line.ChannelSecret, cfg.Line.ChannelToken)
		if err != nil {
			return nil, err
		}
	}

	if cfg.RemindersEnabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		deps.Scheduler = utils.NewReminderScheduler(logger,
			scheduler.NewFromConfig(awsCfg),
			lambda.NewFromConfig(awsCfg),
			utils.ReminderConfig{
				FunctionArn:  cfg.Reminder.FunctionArn,
				FunctionName: cfg.Reminder.FunctionName,
				RoleArn:      cfg.Reminder.RoleArn,
				GroupName:    cfg.Reminder.GroupName,
				Timezone:     cfg.Planner.Timezone,
			})
	}

	return tutor.NewService(logger, deps), nil
}
