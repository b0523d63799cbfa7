package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/sirupsen/logrus"
)

type SchedulerAPI interface {
	GetSchedule(ctx context.Context, params *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type ReminderScheduler interface {
	ScheduleDailyReminder(ctx context.Context, userID, reminderTime string) error
	TriggerReminder(ctx context.Context, userID string) error
}

type ReminderConfig struct {
	FunctionArn  string
	FunctionName string
	RoleArn      string
	GroupName    string
	Timezone     string
}

type EventBridgeReminderScheduler struct {
	logger    *logrus.Entry
	scheduler SchedulerAPI
	lambda    LambdaAPI
	cfg       ReminderConfig
}

func NewReminderScheduler(logger *logrus.Entry, schedulerClient SchedulerAPI, lambdaClient LambdaAPI, cfg ReminderConfig) ReminderScheduler {
	if cfg.GroupName == "" {
		cfg.GroupName = "default"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	return &EventBridgeReminderScheduler{
		logger:    logger,
		scheduler: schedulerClient,
		lambda:    lambdaClient,
		cfg:       cfg,
	}
}

func reminderScheduleName(userID string) string {
	return fmt.Sprintf("study-reminder-%s", SanitizeScheduleName(userID))
}

// SanitizeScheduleName maps a user id onto the characters EventBridge
// Scheduler accepts in a schedule name ([0-9a-zA-Z-_.]).
func SanitizeScheduleName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// DailyCronExpression builds the scheduler expression for "HH:MM" every day.
// The schedule itself carries the timezone.
func DailyCronExpression(reminderTime string) (string, error) {
	t, err := time.Parse("15:04", reminderTime)
	if err != nil {
		return "", fmt.Errorf("invalid time format: %s", reminderTime)
	}
	return fmt.Sprintf("cron(%d %d * * ? *)", t.Minute(), t.Hour()), nil
}

// deleteExistingSchedule removes the user's schedule if there is one.
func (s *EventBridgeReminderScheduler) deleteExistingSchedule(ctx context.Context, userID string) error {
	name := reminderScheduleName(userID)

	_, err := s.scheduler.GetSchedule(ctx, &scheduler.GetScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(s.cfg.GroupName),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to look up existing schedule: %w", err)
	}

	s.logger.WithField("scheduleName", name).Info("Deleting existing schedule")
	_, err = s.scheduler.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(s.cfg.GroupName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete existing schedule: %w", err)
	}
	return nil
}

func (s *EventBridgeReminderScheduler) ScheduleDailyReminder(ctx context.Context, userID, reminderTime string) error {
	expression, err := DailyCronExpression(reminderTime)
	if err != nil {
		return err
	}
	if err := s.deleteExistingSchedule(ctx, userID); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"userId": userID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	name := reminderScheduleName(userID)
	out, err := s.scheduler.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(s.cfg.GroupName),
		FlexibleTimeWindow: &types.FlexibleTimeWindow{
			Mode: types.FlexibleTimeWindowModeOff,
		},
		ScheduleExpression:         aws.String(expression),
		ScheduleExpressionTimezone: aws.String(s.cfg.Timezone),
		Target: &types.Target{
			Arn:     aws.String(s.cfg.FunctionArn),
			RoleArn: aws.String(s.cfg.RoleArn),
			Input:   aws.String(string(payload)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"userId":       userID,
		"scheduleName": name,
		"expression":   expression,
		"scheduleArn":  aws.ToString(out.ScheduleArn),
	}).Info("Successfully created reminder schedule")
	return nil
}

// TriggerReminder asynchronously invokes the reminder function once.
func (s *EventBridgeReminderScheduler) TriggerReminder(ctx context.Context, userID string) error {
	payload, err := json.Marshal(map[string]string{"userId": userID})
	if err != nil {
		return fmt.Errorf("failed to marshal lambda invoke payload: %w", err)
	}

	_, err = s.lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(s.cfg.FunctionName),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke reminder function: %w", err)
	}
	return nil
}
