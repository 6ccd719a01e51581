package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/coupon"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DynamoDBAPI is the part of the DynamoDB client the usage ledger uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Item layout in the usage table, all under pk = COUPON#<id>:
//
//	sk = COUNTER               total uses
//	sk = USER#<userID>         uses by one user
//	sk = USAGE#<time>#<uuid>   one usage record
const (
	counterSortKey     = "COUNTER"
	userSortKeyPrefix  = "USER#"
	usageSortKeyPrefix = "USAGE#"

	// usageTimeLayout is fixed width so usage sort keys order by time.
	usageTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

type dynamoUsageItem struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	ID       string `dynamodbav:"id"`
	CouponID string `dynamodbav:"coupon_id"`
	UserID   string `dynamodbav:"user_id,omitempty"`
	OrderID  string `dynamodbav:"order_id,omitempty"`
	UsedAt   string `dynamodbav:"used_at"`
}

// dynamoUsageRepository implements coupon.UsageLedger on DynamoDB. A commit
// is one TransactWriteItems call whose condition expressions carry the caps.
type dynamoUsageRepository struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDynamoUsageRepository creates a DynamoDB-backed usage ledger.
func NewDynamoUsageRepository(client DynamoDBAPI, tableName string, logger zerolog.Logger) coupon.UsageLedger {
	return &dynamoUsageRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    logger.With().Str("repository", "dynamo_coupon_usage").Logger(),
	}
}

func couponPK(couponID string) string {
	return "COUPON#" + couponID
}

// Commit records a usage if both caps still allow it.
func (r *dynamoUsageRepository) Commit(ctx context.Context, claim coupon.Claim) (*coupon.UsageRecord, error) {
	rec := &coupon.UsageRecord{
		ID:       uuid.NewString(),
		CouponID: claim.CouponID,
		UserID:   claim.UserID,
		OrderID:  claim.OrderID,
		UsedAt:   r.now().UTC(),
	}

	pk := couponPK(claim.CouponID)
	item := dynamoUsageItem{
		PK:       pk,
		SK:       usageSortKeyPrefix + rec.UsedAt.Format(usageTimeLayout) + "#" + rec.ID,
		ID:       rec.ID,
		CouponID: rec.CouponID,
		UserID:   rec.UserID,
		UsedAt:   rec.UsedAt.Format(time.RFC3339Nano),
	}
	if rec.OrderID != nil {
		item.OrderID = *rec.OrderID
	}
	recordMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal usage record: %w", err)
	}

	items := []types.TransactWriteItem{
		{Update: r.counterUpdate(pk, counterSortKey, claim.Limit)},
	}
	if claim.UserID != "" {
		items = append(items, types.TransactWriteItem{
			Update: r.counterUpdate(pk, userSortKeyPrefix+claim.UserID, claim.LimitPerUser),
		})
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                recordMap,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	})

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if conditionFailed(err) {
			r.logger.Debug().
				Str("coupon_id", claim.CouponID).
				Str("user_id", claim.UserID).
				Msg("commit lost: cap condition failed")
			return nil, coupon.ErrRaceLost
		}
		r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to commit coupon usage")
		return nil, fmt.Errorf("transact write items: %w", err)
	}

	return rec, nil
}

// counterUpdate increments a counter item, guarded by limit when it is set.
func (r *dynamoUsageRepository) counterUpdate(pk, sk string, limit int) *types.Update {
	u := &types.Update{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: sk},
		},
		UpdateExpression: aws.String("SET used = if_not_exists(used, :zero) + :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
	}
	if limit > 0 {
		u.ConditionExpression = aws.String("attribute_not_exists(used) OR used < :limit")
		u.ExpressionAttributeValues[":limit"] = &types.AttributeValueMemberN{Value: strconv.Itoa(limit)}
	}
	return u
}

func conditionFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
		return len(canceled.CancellationReasons) == 0
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

// Used returns the total number of usages of a coupon.
func (r *dynamoUsageRepository) Used(ctx context.Context, couponID string) (int, error) {
	return r.readCounter(ctx, couponPK(couponID), counterSortKey)
}

// CountByUser returns the number of usages of a coupon by one user.
func (r *dynamoUsageRepository) CountByUser(ctx context.Context, couponID, userID string) (int, error) {
	return r.readCounter(ctx, couponPK(couponID), userSortKeyPrefix+userID)
}

func (r *dynamoUsageRepository) readCounter(ctx context.Context, pk, sk string) (int, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Error().Err(err).Str("pk", pk).Str("sk", sk).Msg("failed to read usage counter")
		return 0, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}

	var counter struct {
		Used int `dynamodbav:"used"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &counter); err != nil {
		return 0, fmt.Errorf("unmarshal usage counter: %w", err)
	}
	return counter.Used, nil
}

// Records returns the usage history of a coupon, oldest first. It follows
// LastEvaluatedKey until the partition is read.
func (r *dynamoUsageRepository) Records(ctx context.Context, couponID string) ([]coupon.UsageRecord, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: couponPK(couponID)},
			":prefix": &types.AttributeValueMemberS{Value: usageSortKeyPrefix},
		},
		ConsistentRead: aws.Bool(true),
	})

	var items []dynamoUsageItem
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error().Err(err).Str("coupon_id", couponID).Msg("failed to query usage records")
			return nil, fmt.Errorf("query: %w", err)
		}
		var page []dynamoUsageItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal usage records: %w", err)
		}
		items = append(items, page...)
	}

	records := make([]coupon.UsageRecord, 0, len(items))
	for _, it := range items {
		usedAt, err := time.Parse(time.RFC3339Nano, it.UsedAt)
		if err != nil {
			return nil, fmt.Errorf("usage record %s: %w", it.ID, err)
		}
		rec := coupon.UsageRecord{ID: it.ID, CouponID: it.CouponID, UserID: it.UserID, UsedAt: usedAt}
		if it.OrderID != "" {
			orderID := it.OrderID
			rec.OrderID = &orderID
		}
		records = append(records, rec)
	}
	return records, nil
}
