package awsx

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
)

// resultItem is the stored shape of a result. Workers may write either the
// raw detections under "labels" or pre-aggregated "label_counts".
type resultItem struct {
	LabelCounts map[string]int `dynamodbav:"label_counts,omitempty"`
	Labels      []detection    `dynamodbav:"labels,omitempty"`
	CompletedAt string         `dynamodbav:"completed_at,omitempty"`
}

type detection struct {
	Class string `dynamodbav:"class"`
}

// DynamoResultStore implements core.ResultStore on a DynamoDB table keyed by
// a single string attribute.
type DynamoResultStore struct {
	client  DynamoDBAPI
	table   string
	keyAttr string
}

// NewDynamoResultStore returns a result store for table. keyAttr defaults to
// "prediction_id".
func NewDynamoResultStore(client DynamoDBAPI, table, keyAttr string) (*DynamoResultStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if table == "" {
		return nil, errors.New("table is required")
	}
	if keyAttr == "" {
		keyAttr = "prediction_id"
	}
	return &DynamoResultStore{client: client, table: table, keyAttr: keyAttr}, nil
}

func (s *DynamoResultStore) key(jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{s.keyAttr: &types.AttributeValueMemberS{Value: jobID}}
}

// Get reads the result for jobID with a strongly consistent read.
func (s *DynamoResultStore) Get(ctx context.Context, jobID string) (*model.ResultRecord, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(jobID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, wrapAPIError("dynamodb get item", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item resultItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, err
	}

	rec := &model.ResultRecord{JobID: jobID, Labels: item.LabelCounts}
	if len(rec.Labels) == 0 {
		classes := make([]string, 0, len(item.Labels))
		for _, d := range item.Labels {
			classes = append(classes, d.Class)
		}
		rec.Labels = model.CountLabels(classes)
	}
	if item.CompletedAt != "" {
		if at, parseErr := time.Parse(time.RFC3339Nano, item.CompletedAt); parseErr == nil {
			rec.CompletedAt = at
		}
	}
	return rec, true, nil
}

// Put writes rec, overwriting any previous result for the same job.
func (s *DynamoResultStore) Put(ctx context.Context, rec *model.ResultRecord) error {
	if rec == nil || rec.JobID == "" {
		return errors.New("result job id is required")
	}
	item := resultItem{LabelCounts: rec.Labels}
	if !rec.CompletedAt.IsZero() {
		item.CompletedAt = rec.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	av[s.keyAttr] = &types.AttributeValueMemberS{Value: rec.JobID}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return wrapAPIError("dynamodb put item", err)
	}
	return nil
}

var _ core.ResultStore = (*DynamoResultStore)(nil)
