package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/pitchside/video-pipeline/internal/config"
	"github.com/pitchside/video-pipeline/pkg/models"
)

// VideoRepository persists VideoRecords in DynamoDB.
//
// Key schema: pk=VIDEO#<id>, sk=METADATA. GSI1 groups a team's videos
// in creation order: gsi1pk=TEAM#<teamId>, gsi1sk=<createdAt>#<id>.
type VideoRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewVideoRepository creates a VideoRepository using the provided
// configuration.
func NewVideoRepository(ctx context.Context, cfg *config.Config) (*VideoRepository, error) {
	if cfg.AWS.DynamoDBTable == "" {
		return nil, errors.New("DynamoDB table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	return &VideoRepository{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.AWS.DynamoDBTable,
	}, nil
}

// NewVideoRepositoryFromClient creates a VideoRepository from an
// existing DynamoDB client.
func NewVideoRepositoryFromClient(client *dynamodb.Client, tableName string) *VideoRepository {
	return &VideoRepository{
		client:    client,
		tableName: tableName,
	}
}

func videoKey(videoID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("VIDEO#%s", videoID)},
		"sk": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// CreateVideo persists a new record with status pending. Exactly one
// record is created per successful persist stage.
func (r *VideoRepository) CreateVideo(ctx context.Context, rec *models.VideoRecord) error {
	rec.PK = fmt.Sprintf("VIDEO#%s", rec.VideoID)
	rec.SK = "METADATA"
	rec.GSI1PK = fmt.Sprintf("TEAM#%s", rec.TeamID)
	rec.GSI1SK = fmt.Sprintf("%s#%s", rec.CreatedAt, rec.VideoID)

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("video already exists: %s", rec.VideoID)
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a record by id, including any attached analysis.
func (r *VideoRepository) GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       videoKey(videoID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if result.Item == nil {
		return nil, models.ErrVideoNotFound
	}

	return r.unmarshalVideo(result.Item)
}

func (r *VideoRepository) unmarshalVideo(item map[string]types.AttributeValue) (*models.VideoRecord, error) {
	var rec models.VideoRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	// The canonical analysis is stored as an opaque JSON document:
	// it is written once and never patched.
	if attr, ok := item["analysis"].(*types.AttributeValueMemberS); ok && attr.Value != "" {
		var data models.AnalysisData
		if err := json.Unmarshal([]byte(attr.Value), &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		rec.Analysis = &data
	}

	return &rec, nil
}

// ListTeamVideos returns a team's videos newest first.
func (r *VideoRepository) ListTeamVideos(ctx context.Context, teamID string, limit int32) ([]models.VideoRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("TEAM#%s", teamID)},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list team videos: %w", err)
	}

	videos := make([]models.VideoRecord, 0, len(result.Items))
	for _, item := range result.Items {
		rec, err := r.unmarshalVideo(item)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *rec)
	}
	return videos, nil
}

// FindByTitle returns all of a team's videos with the given title,
// newest first. Title plus team is a natural key that is not enforced
// unique, so more than one record can come back.
func (r *VideoRepository) FindByTitle(ctx context.Context, teamID, title string) ([]models.VideoRecord, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		FilterExpression:       aws.String("title = :title"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: fmt.Sprintf("TEAM#%s", teamID)},
			":title": &types.AttributeValueMemberS{Value: title},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find videos by title: %w", err)
	}

	videos := make([]models.VideoRecord, 0, len(result.Items))
	for _, item := range result.Items {
		rec, err := r.unmarshalVideo(item)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *rec)
	}
	return videos, nil
}

// DeleteVideo removes a record.
func (r *VideoRepository) DeleteVideo(ctx context.Context, videoID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       videoKey(videoID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}

// MarkAnalyzing advances a pending record to analyzing. The condition
// enforces that status never moves backwards.
func (r *VideoRepository) MarkAnalyzing(ctx context.Context, videoID string) error {
	return r.transitionStatus(ctx, videoID, models.StatusPending, models.StatusAnalyzing)
}

// RetryAnalyzing moves a failed record back to analyzing. This is the
// only permitted backward transition, and only on explicit request.
func (r *VideoRepository) RetryAnalyzing(ctx context.Context, videoID string) error {
	return r.transitionStatus(ctx, videoID, models.StatusFailed, models.StatusAnalyzing)
}

func (r *VideoRepository) transitionStatus(ctx context.Context, videoID string, from, to models.AnalysisStatus) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              videoKey(videoID),
		UpdateExpression: aws.String("SET #status = :to, updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":         &types.AttributeValueMemberS{Value: string(to)},
			":from":       &types.AttributeValueMemberS{Value: string(from)},
			":updated_at": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(pk) AND #status = :from"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s -> %s for %s", models.ErrInvalidStatus, from, to, videoID)
		}
		return fmt.Errorf("failed to transition status: %w", err)
	}

	return nil
}

// CompleteAnalysis attaches the canonical analysis and marks the record
// completed. The analysis document is immutable once written.
func (r *VideoRepository) CompleteAnalysis(ctx context.Context, videoID string, data *models.AnalysisData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       videoKey(videoID),
		UpdateExpression: aws.String(`
			SET #status = :status,
			    analysis = :analysis,
			    analyzed_at = :analyzed_at,
			    updated_at = :updated_at
			REMOVE analysis_error
		`),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":      &types.AttributeValueMemberS{Value: string(models.StatusCompleted)},
			":analyzing":   &types.AttributeValueMemberS{Value: string(models.StatusAnalyzing)},
			":analysis":    &types.AttributeValueMemberS{Value: string(payload)},
			":analyzed_at": &types.AttributeValueMemberS{Value: now},
			":updated_at":  &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(pk) AND #status = :analyzing"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: completing %s", models.ErrInvalidStatus, videoID)
		}
		return fmt.Errorf("failed to complete analysis: %w", err)
	}

	return nil
}

// FailAnalysis marks the record failed and stores the diagnostic
// payload in place of analysis data. A completed record is never
// downgraded.
func (r *VideoRepository) FailAnalysis(ctx context.Context, videoID string, failure *models.AnalysisFailure) error {
	failureAV, err := attributevalue.Marshal(failure)
	if err != nil {
		return fmt.Errorf("failed to marshal failure: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              videoKey(videoID),
		UpdateExpression: aws.String("SET #status = :status, analysis_error = :failure, updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(models.StatusFailed)},
			":completed":  &types.AttributeValueMemberS{Value: string(models.StatusCompleted)},
			":failure":    failureAV,
			":updated_at": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(pk) AND #status <> :completed"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: failing %s", models.ErrInvalidStatus, videoID)
		}
		return fmt.Errorf("failed to mark analysis as failed: %w", err)
	}

	return nil
}

// ListStorageKeys returns every storage key referenced by a record.
// Used by the reconciliation sweep to tell live binaries from orphans.
func (r *VideoRepository) ListStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		ProjectionExpression: aws.String("storage_key"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan storage keys: %w", err)
		}
		for _, item := range page.Items {
			if attr, ok := item["storage_key"].(*types.AttributeValueMemberS); ok && attr.Value != "" {
				keys[attr.Value] = struct{}{}
			}
		}
	}

	return keys, nil
}
