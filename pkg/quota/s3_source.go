package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Getter is the subset of the S3 client used by the S3 source.
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates a policy document in S3 or an S3-compatible service.
type S3Config struct {
	Bucket         string `env:"POLICY_S3_BUCKET"`
	Key            string `env:"POLICY_S3_KEY" envDefault:"quota-policies.yaml"`
	Region         string `env:"POLICY_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"POLICY_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"POLICY_S3_SECRET_KEY"`
	Endpoint       string `env:"POLICY_S3_ENDPOINT"`
	ForcePathStyle bool   `env:"POLICY_S3_FORCE_PATH_STYLE" envDefault:"false"`
}

type s3Source struct {
	client S3Getter
	bucket string
	key    string
}

// NewS3Source returns a Source that fetches a YAML policy document with the given client.
func NewS3Source(client S3Getter, bucket, key string) Source {
	return &s3Source{client: client, bucket: bucket, key: key}
}

// NewS3SourceFromConfig builds an S3 client from cfg and returns a Source backed by it.
func NewS3SourceFromConfig(ctx context.Context, cfg S3Config) (Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("%w: s3 bucket and key are required", ErrFailedToLoad)
	}

	awsOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsOptions = append(awsOptions,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretKey,
				"",
			)),
		)
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoad, err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3Source(client, cfg.Bucket, cfg.Key), nil
}

func (s *s3Source) Load(ctx context.Context) (map[FeatureKind]Policy, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, classifyS3Error(err, s.bucket, s.key)
	}
	defer out.Body.Close()

	return ParseYAML(out.Body)
}

func classifyS3Error(err error, bucket, key string) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: s3://%s/%s", ErrPolicyNotFound, bucket, key)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: s3://%s/%s", ErrPolicyNotFound, bucket, key)
		default:
			return fmt.Errorf("get policy document (code: %s): %w", apiErr.ErrorCode(), err)
		}
	}

	return fmt.Errorf("get policy document: %w", err)
}
