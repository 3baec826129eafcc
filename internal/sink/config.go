package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Destination kinds accepted in configuration.
const (
	KindCloudWatch = "cloudwatch"
	KindS3         = "s3"
	KindKinesis    = "kinesis"
)

// Config selects and parameterizes one destination. Credentials are
// optional; when absent the default AWS provider chain applies.
type Config struct {
	Kind            string        `koanf:"kind" yaml:"kind"`
	Region          string        `koanf:"region" yaml:"region"`
	AccessKeyID     string        `koanf:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `koanf:"secret_access_key" yaml:"secret_access_key"`
	Endpoint        string        `koanf:"endpoint" yaml:"endpoint"`
	CallTimeout     time.Duration `koanf:"call_timeout" yaml:"call_timeout"`

	CloudWatch CloudWatchConfig `koanf:"cloudwatch" yaml:"cloudwatch"`
	S3         S3Config         `koanf:"s3" yaml:"s3"`
	Kinesis    KinesisConfig    `koanf:"kinesis" yaml:"kinesis"`
}

type CloudWatchConfig struct {
	LogGroup string `koanf:"log_group" yaml:"log_group"`
}

type S3Config struct {
	Bucket   string `koanf:"bucket" yaml:"bucket"`
	Prefix   string `koanf:"prefix" yaml:"prefix"`
	KMSKeyID string `koanf:"kms_key_id" yaml:"kms_key_id"`
}

type KinesisConfig struct {
	Stream string `koanf:"stream" yaml:"stream"`
}

// BuildDestination constructs the configured destination with its own
// AWS client. Called once at startup; sync calls share the client.
func BuildDestination(ctx context.Context, cfg Config, logger *zap.Logger) (Destination, error) {
	if cfg.Kind == "" {
		return nil, errors.New("sink: destination kind not configured")
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindCloudWatch:
		if cfg.CloudWatch.LogGroup == "" {
			return nil, errors.New("sink: cloudwatch log group is required")
		}
		client := cloudwatchlogs.NewFromConfig(awsCfg, func(o *cloudwatchlogs.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		return NewDurableLog(client, cfg.CloudWatch.LogGroup, cfg.CallTimeout, logger), nil

	case KindS3:
		if cfg.S3.Bucket == "" {
			return nil, errors.New("sink: s3 bucket is required")
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		return NewObjectStore(client, cfg.S3, cfg.CallTimeout, logger), nil

	case KindKinesis:
		if cfg.Kinesis.Stream == "" {
			return nil, errors.New("sink: kinesis stream is required")
		}
		client := kinesis.NewFromConfig(awsCfg, func(o *kinesis.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		return NewStream(client, cfg.Kinesis.Stream, cfg.CallTimeout, logger), nil

	default:
		return nil, fmt.Errorf("sink: unknown destination kind %q", cfg.Kind)
	}
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("sink: load aws config: %w", err)
	}
	return awsCfg, nil
}
