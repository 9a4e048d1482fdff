package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores uploads in a bucket. PublicBaseURL is prefixed to object keys
// to form the returned URL.
type S3 struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

// S3Options configures NewS3. Endpoint is optional and targets an
// S3-compatible service such as MinIO.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := opts.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	return &S3{client: client, bucket: opts.Bucket, publicBaseURL: strings.TrimSuffix(base, "/")}, nil
}

func (s *S3) Upload(ctx context.Context, u Upload) (string, error) {
	f, err := read(u)
	if err != nil {
		return "", err
	}
	key := f.key()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f.reader(),
		ContentType: aws.String(f.mime),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload %s to S3: %w", key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}
