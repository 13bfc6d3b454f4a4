package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// S3 is an Exchange backed by objects under a prefix in an S3-compatible
// bucket. Object LastModified is the message's modification time.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	codec  Codec
}

var _ Exchange = (*S3)(nil)

// S3Config describes where messages live.
type S3Config struct {
	Bucket string
	Prefix string // e.g. "gossip/"
	Region string
	// Endpoint enables path-style addressing (for MinIO and similar).
	Endpoint string
	Codec    Codec
}

// NewS3 loads the default AWS configuration and returns an S3 exchange.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 exchange: bucket is required")
	}
	client, err := NewS3Client(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	codec := cfg.Codec
	if codec == nil {
		codec = JSONCodec{}
	}
	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
		codec:  codec,
	}, nil
}

// NewS3Client loads the default AWS configuration for region. A non-empty
// endpoint enables path-style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3opts...), nil
}

func normalizePrefix(p string) string {
	p = strings.TrimLeft(p, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func (e *S3) objectKey(key string) string {
	return e.prefix + key + e.codec.Ext()
}

// keyFromObject maps an object key back to an exchange key. It reports false
// for objects that are not messages of this codec directly under the prefix.
func (e *S3) keyFromObject(obj string) (string, bool) {
	rest, ok := strings.CutPrefix(obj, e.prefix)
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(rest, e.codec.Ext())
	if !ok || !ValidKey(key) {
		return "", false
	}
	return key, true
}

func (e *S3) Write(ctx context.Context, key string, msg *model.GossipMessage) error {
	if err := checkKey("write", key); err != nil {
		return err
	}
	data, err := e.codec.Marshal(msg)
	if err != nil {
		return &model.IOError{Op: "encode", Key: key, Err: err}
	}
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return &model.IOError{Op: "s3 put object", Key: key, Err: err}
	}
	return nil
}

func (e *S3) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
		Prefix: aws.String(e.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, &model.IOError{Op: "s3 list objects", Key: e.prefix, Err: err}
		}
		for _, obj := range page.Contents {
			if key, ok := e.keyFromObject(aws.ToString(obj.Key)); ok {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (e *S3) Read(ctx context.Context, key string) (*model.GossipMessage, error) {
	if err := checkKey("read", key); err != nil {
		return nil, err
	}
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, &model.IOError{Op: "s3 get object", Key: key, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &model.IOError{Op: "s3 read body", Key: key, Err: err}
	}
	var msg model.GossipMessage
	if err := e.codec.Unmarshal(data, &msg); err != nil {
		return nil, &model.IOError{Op: "decode", Key: key, Err: err}
	}
	return &msg, nil
}

func (e *S3) Delete(ctx context.Context, key string) error {
	if err := checkKey("delete", key); err != nil {
		return err
	}
	_, err := e.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return &model.IOError{Op: "s3 delete object", Key: key, Err: err}
	}
	return nil
}

func (e *S3) ModifiedTime(ctx context.Context, key string) (time.Time, error) {
	if err := checkKey("stat", key); err != nil {
		return time.Time{}, err
	}
	out, err := e.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, &model.IOError{Op: "s3 head object", Key: key, Err: err}
	}
	return aws.ToTime(out.LastModified), nil
}
