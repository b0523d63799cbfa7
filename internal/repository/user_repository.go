package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"course-pilot/internal/models"
	"course-pilot/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

type userRepository struct {
	logger    *logrus.Entry
	provider  *utils.DynamoProvider
	tableName string
	now       func() time.Time
}

// NewUserRepository stores one item per user, keyed by userId. The client is
// taken from provider on each call so the connection is only made when the
// first request needs it.
func NewUserRepository(logger *logrus.Entry, provider *utils.DynamoProvider, tableName string) utils.UserRepository {
	return &userRepository{
		logger:    logger,
		provider:  provider,
		tableName: tableName,
		now:       time.Now,
	}
}

func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	normalize(&user)
	return &user, nil
}

func (r *userRepository) GetOrCreateUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = models.NewUser(userID)
	err = r.SaveUser(ctx, user)
	if errors.Is(err, utils.ErrVersionConflict) {
		// someone else created it first
		return r.GetUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	r.logger.WithField("userId", userID).Info("Created new user")
	return user, nil
}

// SaveUser writes the whole user record. The write only succeeds when the
// stored version still equals user.Version; on success the version is bumped
// in place.
func (r *userRepository) SaveUser(ctx context.Context, user *models.User) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	expected := user.Version
	next := *user
	next.Version = expected + 1
	next.Touch(r.now())

	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(userId) OR version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return utils.ErrVersionConflict
		}
		r.logger.WithError(err).Error("Failed to save user to DynamoDB")
		return fmt.Errorf("failed to save user: %w", err)
	}

	user.Version = next.Version
	user.UpdatedAt = next.UpdatedAt

	r.logger.WithFields(logrus.Fields{
		"userId":  user.UserID,
		"version": user.Version,
	}).Debug("Successfully saved user")
	return nil
}

func (r *userRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	users := []*models.User{}
	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan users")
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		var batch []*models.User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal users: %w", err)
		}
		for _, u := range batch {
			normalize(u)
		}
		users = append(users, batch...)
	}
	return users, nil
}

// normalize replaces nil collections left by older or partial records.
func normalize(u *models.User) {
	if u.Subjects == nil {
		u.Subjects = []*models.Subject{}
	}
	if u.Timetable == nil {
		u.Timetable = []models.TimetableSlot{}
	}
	for _, s := range u.Subjects {
		if s.Weaknesses == nil {
			s.Weaknesses = []string{}
		}
		if s.QuizHistory == nil {
			s.QuizHistory = []models.QuizRecord{}
		}
		if s.Materials == nil {
			s.Materials = []models.Material{}
		}
	}
}
