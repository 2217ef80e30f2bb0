package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const exportURLTTL = 15 * time.Minute

// ExportService writes an account's usage history to object storage and hands
// back a presigned download URL. Export is a gated, billable operation: it
// requires the usage_export capability and consumes one quota unit.
type ExportService interface {
	ExportUsage(ctx context.Context, account *model.Account) (string, time.Time, error)
}

type exportService struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	bucket    string
	usage     repository.UsageRepository
	features  FeatureService
	quota     QuotaService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExportService creates a new ExportService with a scoped logger.
func NewExportService(
	s3Client *s3.Client,
	bucket string,
	usage repository.UsageRepository,
	features FeatureService,
	quota QuotaService,
	logger zerolog.Logger,
) ExportService {
	return &exportService{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    bucket,
		usage:     usage,
		features:  features,
		quota:     quota,
		logger:    logger.With().Str("service", "ExportService").Logger(),
		now:       time.Now,
	}
}

func (s *exportService) ExportUsage(ctx context.Context, account *model.Account) (string, time.Time, error) {
	ok, err := s.features.HasFeature(account, model.FeatureUsageExport)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrFeatureNotAvailable, model.FeatureUsageExport)
	}

	decision, err := s.quota.CheckAndConsume(ctx, account, 1)
	if err != nil {
		return "", time.Time{}, err
	}
	if !decision.Allowed {
		return "", time.Time{}, &QuotaExhaustedError{ResetAt: decision.ResetAt}
	}

	counters, err := s.usage.ListCounters(ctx, account.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to list usage counters for export")
		return "", time.Time{}, err
	}

	var buf bytes.Buffer
	buf.WriteString("window_start,consumed\n")
	for _, c := range counters {
		fmt.Fprintf(&buf, "%s,%d\n", c.WindowStart.UTC().Format(time.RFC3339), c.Consumed)
	}

	key := fmt.Sprintf("usage-exports/%s/%s.csv", account.ID, s.now().UTC().Format("20060102T150405Z"))
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Str("key", key).Msg("Failed to upload usage export")
		return "", time.Time{}, fmt.Errorf("uploading usage export: %w", err)
	}

	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(exportURLTTL))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to presign usage export")
		return "", time.Time{}, fmt.Errorf("presigning usage export: %w", err)
	}

	return presigned.URL, s.now().UTC().Add(exportURLTTL), nil
}
