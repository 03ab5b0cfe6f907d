// Package s3 moves log files in and out of the Carbonix buckets. It is a
// thin pass-through over the S3 API and its transfer manager: no retry or
// backoff policy of its own beyond what the SDK already does.
package s3

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

// API wraps the object-level S3 operations the client depends on.
type API interface {
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *awss3.CopyObjectInput, optFns ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

var _ API = (*awss3.Client)(nil)

// Uploader matches the transfer manager's concurrent multipart uploader.
type Uploader interface {
	Upload(ctx context.Context, input *awss3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Downloader matches the transfer manager's concurrent downloader.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *awss3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// Client is the S3 handle used by the pipeline.
type Client struct {
	api        API
	uploader   Uploader
	downloader Downloader
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New builds a Client from an AWS config.
func New(awsCfg aws.Config, opts ...Option) *Client {
	api := awss3.NewFromConfig(awsCfg)
	c := &Client{
		api:        api,
		uploader:   manager.NewUploader(api),
		downloader: manager.NewDownloader(api),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromRegion builds a Client on the SDK's default credential chain,
// optionally overriding the region.
func NewFromRegion(ctx context.Context, region string, opts ...Option) (*Client, error) {
	var cfgOpts []func(*config.LoadOptions) error
	if region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, err
	}
	return New(awsCfg, opts...), nil
}

// NewWithAPI builds a Client around existing API and transfer
// implementations.
func NewWithAPI(api API, uploader Uploader, downloader Downloader, opts ...Option) *Client {
	c := &Client{
		api:        api,
		uploader:   uploader,
		downloader: downloader,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Metadata returns the user metadata of an object.
func (c *Client) Metadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	resp, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "head s3://%s/%s", bucket, key)
	}
	return resp.Metadata, nil
}

// Copy copies one object between buckets.
func (c *Client) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	source := fmt.Sprintf("%s/%s", srcBucket, url.PathEscape(srcKey))
	_, err := c.api.CopyObject(ctx, &awss3.CopyObjectInput{
		CopySource: &source,
		Bucket:     &dstBucket,
		Key:        &dstKey,
	})
	if err != nil {
		return errors.Wrapf(err, "copy s3://%s/%s to s3://%s/%s", srcBucket, srcKey, dstBucket, dstKey)
	}

	c.log.Debug("object copied", "from", srcBucket+"/"+srcKey, "to", dstBucket+"/"+dstKey)
	return nil
}

// Download fetches an object into a local file.
func (c *Client) Download(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", localPath)
	}
	defer f.Close()

	_, err = c.downloader.Download(ctx, f, &awss3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return errors.Wrapf(err, "download s3://%s/%s", bucket, key)
	}

	c.log.Debug("object downloaded", "bucket", bucket, "key", key, "path", localPath)
	return nil
}

// Upload stores a local file as an object.
func (c *Client) Upload(ctx context.Context, localPath, bucket, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()

	_, err = c.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "upload %s to s3://%s/%s", localPath, bucket, key)
	}

	c.log.Debug("object uploaded", "path", localPath, "bucket", bucket, "key", key)
	return nil
}

// UploadDir uploads the contents of a local directory under a key prefix,
// preserving the relative layout. It stops at the first failure.
func (c *Client) UploadDir(ctx context.Context, dir, bucket, prefix string) error {
	err := filepath.WalkDir(dir, func(localPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, localPath)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		return c.Upload(ctx, localPath, bucket, key)
	})
	if err != nil {
		return errors.Wrapf(err, "upload directory %s", dir)
	}

	c.log.Debug("directory uploaded", "dir", dir, "bucket", bucket, "prefix", prefix)
	return nil
}

// Delete removes an object.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return errors.Wrapf(err, "delete s3://%s/%s", bucket, key)
	}

	c.log.Debug("object deleted", "bucket", bucket, "key", key)
	return nil
}

// Exists reports whether an object or folder is present. Object keys use
// HeadObject (cheaper); names ending in "/" are treated as folders and
// checked with a single-key listing.
func (c *Client) Exists(ctx context.Context, bucket, name string) (bool, error) {
	if !strings.HasSuffix(name, "/") {
		_, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: &bucket,
			Key:    &name,
		})
		if err == nil {
			return true, nil
		}
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "head s3://%s/%s", bucket, name)
	}

	resp, err := c.api.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  &bucket,
		Prefix:  &name,
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, errors.Wrapf(err, "list s3://%s/%s", bucket, name)
	}
	return len(resp.Contents) > 0, nil
}

// ListFolders returns every folder prefix in a bucket, sorted.
func (c *Client) ListFolders(ctx context.Context, bucket string) ([]string, error) {
	folders := map[string]struct{}{}
	err := c.eachObject(ctx, bucket, func(obj types.Object) {
		key := aws.ToString(obj.Key)
		folder := key
		if !strings.HasSuffix(key, "/") {
			idx := strings.LastIndex(key, "/")
			if idx < 0 {
				return
			}
			folder = key[:idx+1]
		}
		folders[folder] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(folders))
	for folder := range folders {
		out = append(out, folder)
	}
	sort.Strings(out)
	return out, nil
}

// ListFiles returns every object key in a bucket.
func (c *Client) ListFiles(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	err := c.eachObject(ctx, bucket, func(obj types.Object) {
		keys = append(keys, aws.ToString(obj.Key))
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// ObjectSize pairs an object key with its size in bytes.
type ObjectSize struct {
	Key  string
	Size int64
}

// ListFilesWithSize returns every object key in a bucket with its size.
func (c *Client) ListFilesWithSize(ctx context.Context, bucket string) ([]ObjectSize, error) {
	var out []ObjectSize
	err := c.eachObject(ctx, bucket, func(obj types.Object) {
		out = append(out, ObjectSize{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) eachObject(ctx context.Context, bucket string, fn func(types.Object)) error {
	paginator := awss3.NewListObjectsV2Paginator(c.api, &awss3.ListObjectsV2Input{
		Bucket: &bucket,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errors.Wrapf(err, "list bucket %s", bucket)
		}
		for _, obj := range page.Contents {
			fn(obj)
		}
	}
	return nil
}

// MoveToUnprocessed parks an object under a timestamped prefix in the
// unprocessed bucket and removes the source. Returns the destination key.
func (c *Client) MoveToUnprocessed(ctx context.Context, srcBucket, srcKey, dstBucket, prefix string) (string, error) {
	if prefix == "" {
		prefix = "NoCategory"
	}
	dstKey := fmt.Sprintf("%s/%s/%s", prefix, time.Now().Format("20060102-150405"), srcKey)

	if err := c.Copy(ctx, srcBucket, srcKey, dstBucket, dstKey); err != nil {
		return "", err
	}
	if err := c.Delete(ctx, srcBucket, srcKey); err != nil {
		return "", err
	}
	return dstKey, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}
