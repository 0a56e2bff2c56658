package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	cfgpkg "aimlib/internal/config"
)

type S3Storage struct {
	bucket string
	client *s3.Client
	logger *slog.Logger
}

func NewS3(cfg cfgpkg.Config, logger *slog.Logger) (*S3Storage, error) {
	if cfg.AppConfig.S3Bucket == "" || cfg.AppConfig.S3AccessKey == "" || cfg.AppConfig.S3SecretKey == "" || cfg.AppConfig.S3Endpoint == "" {
		return nil, fmt.Errorf("缺少 S3 配置")
	}

	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: cfg.AppConfig.S3Endpoint, HostnameImmutable: true}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.AppConfig.S3Region),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: cfg.AppConfig.S3AccessKey, SecretAccessKey: cfg.AppConfig.S3SecretKey}, nil
		})),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Storage{bucket: cfg.AppConfig.S3Bucket, client: client, logger: logger}, nil
}

func (s *S3Storage) Platform() BucketPlatform {
	return PlatformS3
}

// List 只取 dir/ 下一层对象，子目录忽略。
func (s *S3Storage) List(ctx context.Context, dir, ext string) ([]string, error) {
	normalized, err := NormalizeObjectKey(dir)
	if err != nil {
		return nil, err
	}
	prefix := normalized + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	names := make([]string, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("列举 S3 对象失败: %w", err)
		}
		for _, obj := range page.Contents {
			name := path.Base(strings.TrimPrefix(aws.ToString(obj.Key), prefix))
			if name == "" || name == "." || !MatchExt(name, ext) {
				continue
			}
			names = append(names, name)
		}
	}
	return sortedNames(names), nil
}

func (s *S3Storage) Write(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	normalized, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return err
	}

	// 若 size <0 需要缓存到内存以便 ContentLength
	var body io.Reader = r
	if size < 0 {
		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, r); err != nil {
			return err
		}
		size = int64(buf.Len())
		body = buf
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &normalized,
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   &contentType,
		ACL:           types.ObjectCannedACLPrivate,
	})
	return err
}

func (s *S3Storage) Delete(ctx context.Context, objectKey string) error {
	normalized, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &normalized,
	})
	return err
}
