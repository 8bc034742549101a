package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	appcfg "github.com/paperchain/core/internal/config"
	"go.uber.org/zap"
)

// S3Store keeps payloads in an S3-compatible bucket keyed by their CID.
// Identifiers that do not decode as a CID are treated as missing.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

func NewS3Store(opts appcfg.S3Options, logger *zap.Logger) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	pathStyle := opts.PathStyleAccess || endpoint != ""

	client := s3.New(s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		logger: logger,
	}, nil
}

func (s *S3Store) key(cid string) string {
	if s.prefix == "" {
		return cid
	}
	return s.prefix + "/" + cid
}

func (s *S3Store) Upload(ctx context.Context, name string, data []byte) (string, error) {
	cid, err := ComputeCID(CodecRaw, data)
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return cid, s.put(ctx, cid, name, "application/octet-stream", data)
}

func (s *S3Store) UploadJSON(ctx context.Context, name string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("s3 upload json: %w", err)
	}
	cid, err := ComputeCID(CodecJSON, payload)
	if err != nil {
		return "", fmt.Errorf("s3 upload json: %w", err)
	}
	return cid, s.put(ctx, cid, name, "application/json", payload)
}

func (s *S3Store) put(ctx context.Context, cid, name, contentType string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(cid)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if name != "" {
		input.Metadata = map[string]string{"name": name}
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s: %w", cid, err)
	}
	return nil
}

func (s *S3Store) Retrieve(ctx context.Context, cid string) ([]byte, error) {
	cid = strings.TrimSpace(cid)
	if !ValidCID(cid) {
		return nil, ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cid)),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, ErrNotFound
		}
		s.logger.Warn("ipfs retrieve failed", zap.String("cid", cid), zap.Error(err))
		return nil, notFound(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxRetrieveBytes))
	if err != nil {
		s.logger.Warn("ipfs retrieve failed", zap.String("cid", cid), zap.Error(err))
		return nil, notFound(err)
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, cid string) bool {
	cid = strings.TrimSpace(cid)
	if !ValidCID(cid) {
		return false
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cid)),
	})
	if err != nil {
		if !isMissingObject(err) {
			s.logger.Warn("ipfs exists check failed", zap.String("cid", cid), zap.Error(err))
		}
		return false
	}
	return true
}

func isMissingObject(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
