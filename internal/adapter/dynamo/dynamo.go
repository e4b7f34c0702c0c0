// Package dynamo persists users, games and audit events in a single
// DynamoDB table keyed by PK/SK.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"tictactoe/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/uuid"
)

// Item types stored in the Type attribute.
const (
	typeUser     = "UserItem"
	typeUsername = "UsernameItem"
	typeGame     = "GameItem"
	typeAudit    = "AuditItem"
)

// UserItem is the stored form of a domain.User.
type UserItem struct {
	PK        string
	SK        string
	Type      string
	UserID    string
	Username  string
	Status    string
	Score     int
	CreatedAt time.Time
}

// UsernameItem reserves a username for one user id.
type UsernameItem struct {
	PK     string
	SK     string
	Type   string
	UserID string
}

// GameItem is the stored form of a domain.Session. Board holds the
// nine-character encoding.
type GameItem struct {
	PK          string
	SK          string
	Type        string
	GameID      string
	PlayerX     string
	PlayerO     string
	Board       string
	CurrentTurn int
	Status      string
	Winner      string `dynamodbav:",omitempty"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditItem is one audit record, partitioned by event type.
type AuditItem struct {
	PK        string
	SK        string
	Type      string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

func userKey(id string) string    { return "USER#" + id }
func usernameKey(n string) string { return "USERNAME#" + n }
func gameKey(id string) string    { return "GAME#" + id }
func auditKey(kind string) string { return "AUDIT#" + kind }

func key(pk string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"PK": {S: aws.String(pk)},
		"SK": {S: aws.String(pk)},
	}
}

// Store stores the dynamo client and the table name.
type Store struct {
	d         dynamodbiface.DynamoDBAPI
	tableName string
}

var (
	_ domain.UserRepository    = (*Store)(nil)
	_ domain.SessionRepository = (*Store)(nil)
	_ domain.AuditLog          = (*Store)(nil)
)

// New creates a dynamo store.
func New(d dynamodbiface.DynamoDBAPI, tableName string) *Store {
	return &Store{d: d, tableName: tableName}
}

// Open builds a client for region. A non-empty endpoint targets a local
// DynamoDB instead of AWS.
func Open(region, endpoint, tableName string) (*Store, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("dynamo: create session: %w", err)
	}
	return New(dynamodb.New(sess), tableName), nil
}

func itemFromUser(u *domain.User) *UserItem {
	return &UserItem{
		PK:        userKey(u.ID),
		SK:        userKey(u.ID),
		Type:      typeUser,
		UserID:    u.ID,
		Username:  u.Username,
		Status:    string(u.Status),
		Score:     u.Score,
		CreatedAt: u.CreatedAt,
	}
}

func userFromItem(it *UserItem) *domain.User {
	return &domain.User{
		ID:        it.UserID,
		Username:  it.Username,
		Status:    domain.UserStatus(it.Status),
		Score:     it.Score,
		CreatedAt: it.CreatedAt,
	}
}

func itemFromGame(g *domain.Session) *GameItem {
	return &GameItem{
		PK:          gameKey(g.ID),
		SK:          gameKey(g.ID),
		Type:        typeGame,
		GameID:      g.ID,
		PlayerX:     g.PlayerX,
		PlayerO:     g.PlayerO,
		Board:       g.Board.Encode(),
		CurrentTurn: int(g.CurrentTurn),
		Status:      string(g.Status),
		Winner:      g.Winner,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func gameFromItem(it *GameItem) (*domain.Session, error) {
	b, err := domain.DecodeBoard(it.Board)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", it.GameID, err)
	}
	return &domain.Session{
		ID:          it.GameID,
		PlayerX:     it.PlayerX,
		PlayerO:     it.PlayerO,
		Board:       b,
		CurrentTurn: domain.Cell(it.CurrentTurn),
		Status:      domain.Status(it.Status),
		Winner:      it.Winner,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}, nil
}

// conditionFailed reports whether err is a failed condition, either on a
// single write or on any item of a transaction.
func conditionFailed(err error) bool {
	var ccf *dynamodb.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *dynamodb.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if r != nil && aws.StringValue(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

func (s *Store) getItem(ctx context.Context, pk string, out any) (bool, error) {
	res, err := s.d.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	return true, dynamodbattribute.UnmarshalMap(res.Item, out)
}

// scanType pages through every item of one Type.
func (s *Store) scanType(ctx context.Context, itemType string, fn func(map[string]*dynamodb.AttributeValue) error) error {
	var inner error
	err := s.d.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(s.tableName),
		FilterExpression:         aws.String("#t = :t"),
		ExpressionAttributeNames: map[string]*string{"#t": aws.String("Type")},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":t": {S: aws.String(itemType)},
		},
	}, func(page *dynamodb.ScanOutput, _ bool) bool {
		for _, item := range page.Items {
			if inner = fn(item); inner != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return inner
}

// --- UserRepository ---

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var it UserItem
	ok, err := s.getItem(ctx, userKey(id), &it)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return userFromItem(&it), nil
}

// GetUserByUsername resolves the username reservation and loads the user.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var it UsernameItem
	ok, err := s.getItem(ctx, usernameKey(username), &it)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: username %q", domain.ErrNotFound, username)
	}
	return s.GetUser(ctx, it.UserID)
}

// CreateUser writes the user and its username reservation in one
// transaction. Either item already existing cancels both.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	userAV, err := dynamodbattribute.MarshalMap(itemFromUser(u))
	if err != nil {
		return err
	}
	nameAV, err := dynamodbattribute.MarshalMap(&UsernameItem{
		PK:     usernameKey(u.Username),
		SK:     usernameKey(u.Username),
		Type:   typeUsername,
		UserID: u.ID,
	})
	if err != nil {
		return err
	}

	notExists := aws.String("attribute_not_exists(PK)")
	_, err = s.d.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []*dynamodb.TransactWriteItem{
			{Put: &dynamodb.Put{TableName: aws.String(s.tableName), Item: nameAV, ConditionExpression: notExists}},
			{Put: &dynamodb.Put{TableName: aws.String(s.tableName), Item: userAV, ConditionExpression: notExists}},
		},
	})
	if conditionFailed(err) {
		return fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
	}
	return err
}

func (s *Store) userUpdate(u *domain.User) *dynamodb.Update {
	return &dynamodb.Update{
		TableName:           aws.String(s.tableName),
		Key:                 key(userKey(u.ID)),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("SET #status = :status, Score = :score"),
		ExpressionAttributeNames: map[string]*string{
			"#status": aws.String("Status"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":status": {S: aws.String(string(u.Status))},
			":score":  {N: aws.String(fmt.Sprintf("%d", u.Score))},
		},
	}
}

// SaveUser updates presence and score. Usernames are immutable here.
func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	up := s.userUpdate(u)
	_, err := s.d.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:                 up.TableName,
		Key:                       up.Key,
		ConditionExpression:       up.ConditionExpression,
		UpdateExpression:          up.UpdateExpression,
		ExpressionAttributeNames:  up.ExpressionAttributeNames,
		ExpressionAttributeValues: up.ExpressionAttributeValues,
	})
	if conditionFailed(err) {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
	}
	return err
}

// ListUsers scans every user item.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.scanType(ctx, typeUser, func(av map[string]*dynamodb.AttributeValue) error {
		var it UserItem
		if err := dynamodbattribute.UnmarshalMap(av, &it); err != nil {
			return err
		}
		out = append(out, *userFromItem(&it))
		return nil
	})
	return out, err
}

// --- SessionRepository ---

// GetSession loads a game by id.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var it GameItem
	ok, err := s.getItem(ctx, gameKey(id), &it)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: game %s", domain.ErrNotFound, id)
	}
	return gameFromItem(&it)
}

// SaveSession puts the game and updates the changed users in one
// transaction.
func (s *Store) SaveSession(ctx context.Context, g *domain.Session, changed ...*domain.User) error {
	av, err := dynamodbattribute.MarshalMap(itemFromGame(g))
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		_, err = s.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      av,
		})
		return err
	}

	items := []*dynamodb.TransactWriteItem{
		{Put: &dynamodb.Put{TableName: aws.String(s.tableName), Item: av}},
	}
	for _, u := range changed {
		items = append(items, &dynamodb.TransactWriteItem{Update: s.userUpdate(u)})
	}
	_, err = s.d.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if conditionFailed(err) {
		return fmt.Errorf("%w: game %s references an unknown user", domain.ErrNotFound, g.ID)
	}
	return err
}

// QuerySessions scans game items and filters them in memory, newest first.
func (s *Store) QuerySessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	var out []domain.Session
	err := s.scanType(ctx, typeGame, func(av map[string]*dynamodb.AttributeValue) error {
		var it GameItem
		if err := dynamodbattribute.UnmarshalMap(av, &it); err != nil {
			return err
		}
		g, err := gameFromItem(&it)
		if err != nil {
			return err
		}
		if f.Match(g) {
			out = append(out, *g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b domain.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// --- AuditLog ---

// Append writes one audit item under its event type partition.
func (s *Store) Append(ctx context.Context, e domain.AuditEvent) error {
	av, err := dynamodbattribute.MarshalMap(&AuditItem{
		PK:        auditKey(e.Type),
		SK:        e.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString(),
		Type:      typeAudit,
		EventType: e.Type,
		Data:      e.Data,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = s.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	return err
}
