package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"course-pilot/internal/models"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/sync/singleflight"
)

// DynamoDbAPI defines the DynamoDB operations needed by our application
type DynamoDbAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ErrVersionConflict is returned by SaveUser when the stored version moved
// since the user was read.
var ErrVersionConflict = errors.New("user record was modified concurrently")

// UserRepository defines user-state database operations
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetOrCreateUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// DynamoProvider hands out a DynamoDB client that is created on first use.
// Concurrent first callers share one in-flight connect; a failed connect is
// not cached, so the next caller tries again.
type DynamoProvider struct {
	connect func(ctx context.Context) (DynamoDbAPI, error)

	group  singleflight.Group
	mu     sync.RWMutex
	client DynamoDbAPI
}

func NewDynamoProvider(connect func(ctx context.Context) (DynamoDbAPI, error)) *DynamoProvider {
	return &DynamoProvider{connect: connect}
}

// NewDefaultDynamoProvider connects with the default AWS config chain.
func NewDefaultDynamoProvider() *DynamoProvider {
	return NewDynamoProvider(func(ctx context.Context) (DynamoDbAPI, error) {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return dynamodb.NewFromConfig(cfg), nil
	})
}

func (p *DynamoProvider) Client(ctx context.Context) (DynamoDbAPI, error) {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	v, err, _ := p.group.Do("dynamodb", func() (interface{}, error) {
		p.mu.RLock()
		existing := p.client
		p.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		c, err := p.connect(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.client = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB: %w", err)
	}
	return v.(DynamoDbAPI), nil
}
