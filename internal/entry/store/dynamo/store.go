package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"entrygate/internal/entry/models"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/sentinel"
)

// API is the subset of the DynamoDB client the store calls.
type API interface {
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

const (
	recordTypeEntry  = "ENTRY"
	recordTypeDedupe = "DEDUPE"

	// absentCondition makes each put fail when the key already exists.
	absentCondition = "attribute_not_exists(pk) AND attribute_not_exists(sk)"

	// batchGetLimit is the DynamoDB BatchGetItem key limit.
	batchGetLimit = 100
	// batchGetAttempts bounds retries of unprocessed keys.
	batchGetAttempts = 3
)

type entryItem struct {
	PK         string            `dynamodbav:"pk"`
	SK         string            `dynamodbav:"sk"`
	Type       string            `dynamodbav:"type"`
	ContestID  string            `dynamodbav:"contestId"`
	EntryID    string            `dynamodbav:"entryId"`
	CreatedAt  time.Time         `dynamodbav:"createdAt"`
	Locale     string            `dynamodbav:"locale"`
	Email      string            `dynamodbav:"email"`
	Phone      string            `dynamodbav:"phone"`
	Profile    map[string]string `dynamodbav:"profile,omitempty"`
	Flags      map[string]bool   `dynamodbav:"flags,omitempty"`
	Consent    bool              `dynamodbav:"consent"`
	DrawAt     time.Time         `dynamodbav:"drawAtIso"`
	ReminderAt time.Time         `dynamodbav:"reminderAtIso"`
	Source     models.Source     `dynamodbav:"source"`
}

type markerItem struct {
	PK        string    `dynamodbav:"pk"`
	SK        string    `dynamodbav:"sk"`
	Type      string    `dynamodbav:"type"`
	Kind      string    `dynamodbav:"kind"`
	Hash      string    `dynamodbav:"hash"`
	EntryID   string    `dynamodbav:"entryId"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
}

// Store keeps entries and dedupe markers in one DynamoDB table keyed by pk/sk.
type Store struct {
	client API
	table  string
}

func New(client API, table string) *Store {
	return &Store{client: client, table: table}
}

// Admit writes the two markers and the entry in one TransactWriteItems call.
// A failed condition on any of them cancels the transaction and yields
// sentinel.ErrConflict.
func (s *Store) Admit(ctx context.Context, adm *models.Admission) error {
	items := make([]types.TransactWriteItem, 0, 3)
	for _, m := range adm.Markers() {
		av, err := attributevalue.MarshalMap(toMarkerItem(m))
		if err != nil {
			return fmt.Errorf("marshal %s marker: %w", m.Kind, err)
		}
		items = append(items, s.conditionalPut(av))
	}
	av, err := attributevalue.MarshalMap(toEntryItem(adm.Entry))
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	items = append(items, s.conditionalPut(av))

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("transact write entry: %w", err)
	}
	return nil
}

func (s *Store) conditionalPut(item map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.table),
			Item:                item,
			ConditionExpression: aws.String(absentCondition),
		},
	}
}

func isConditionFailure(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *Store) FindEntry(ctx context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            entryKey(contestID, entryID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return decodeEntry(out.Item)
}

// FindEntries batch-reads entries, skipping ids that do not exist. Results keep request order.
func (s *Store) FindEntries(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID) ([]*models.Entry, error) {
	found := make(map[string]*models.Entry, len(entryIDs))
	for start := 0; start < len(entryIDs); start += batchGetLimit {
		end := min(start+batchGetLimit, len(entryIDs))
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, entryID := range entryIDs[start:end] {
			keys = append(keys, entryKey(contestID, entryID))
		}
		if err := s.batchGet(ctx, keys, found); err != nil {
			return nil, err
		}
	}

	out := make([]*models.Entry, 0, len(found))
	for _, entryID := range entryIDs {
		if e, ok := found[entryID.String()]; ok {
			out = append(out, e)
			delete(found, entryID.String())
		}
	}
	return out, nil
}

func (s *Store) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, found map[string]*models.Entry) error {
	request := map[string]types.KeysAndAttributes{
		s.table: {Keys: keys, ConsistentRead: aws.Bool(true)},
	}
	for attempt := 0; attempt < batchGetAttempts && len(request) > 0; attempt++ {
		out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("batch get entries: %w", err)
		}
		for _, item := range out.Responses[s.table] {
			e, err := decodeEntry(item)
			if err != nil {
				return err
			}
			found[e.EntryID.String()] = e
		}
		request = out.UnprocessedKeys
	}
	if len(request) > 0 {
		return fmt.Errorf("batch get entries: %w", sentinel.ErrUnavailable)
	}
	return nil
}

func entryKey(contestID id.ContestID, entryID id.EntryID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: models.PartitionKey(contestID)},
		"sk": &types.AttributeValueMemberS{Value: models.EntrySortKey(entryID)},
	}
}

func toEntryItem(e *models.Entry) entryItem {
	return entryItem{
		PK:         models.PartitionKey(e.ContestID),
		SK:         models.EntrySortKey(e.EntryID),
		Type:       recordTypeEntry,
		ContestID:  string(e.ContestID),
		EntryID:    e.EntryID.String(),
		CreatedAt:  e.CreatedAt.UTC(),
		Locale:     string(e.Locale),
		Email:      e.Email,
		Phone:      e.Phone,
		Profile:    e.Profile,
		Flags:      e.Flags,
		Consent:    e.Consent,
		DrawAt:     e.DrawAt.UTC(),
		ReminderAt: e.ReminderAt.UTC(),
		Source:     e.Source,
	}
}

func toMarkerItem(m models.DedupeMarker) markerItem {
	return markerItem{
		PK:        models.PartitionKey(m.ContestID),
		SK:        m.SortKey(),
		Type:      recordTypeDedupe,
		Kind:      string(m.Kind),
		Hash:      m.Hash,
		EntryID:   m.EntryID.String(),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func decodeEntry(av map[string]types.AttributeValue) (*models.Entry, error) {
	var item entryItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	entryID, err := id.ParseEntryID(item.EntryID)
	if err != nil {
		return nil, fmt.Errorf("stored entry id %q: %w", item.EntryID, err)
	}
	return &models.Entry{
		ContestID:  id.ContestID(item.ContestID),
		EntryID:    entryID,
		CreatedAt:  item.CreatedAt,
		Locale:     id.Locale(item.Locale),
		Email:      item.Email,
		Phone:      item.Phone,
		Profile:    item.Profile,
		Flags:      item.Flags,
		Consent:    item.Consent,
		DrawAt:     item.DrawAt,
		ReminderAt: item.ReminderAt,
		Source:     item.Source,
	}, nil
}
