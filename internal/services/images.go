package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/config"
)

// ImageURLExpiry is the lifetime of presigned product image URLs.
const ImageURLExpiry = 15 * time.Minute

var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Images stores product pictures in a MinIO bucket.
type Images struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(cfg config.MinIOConfig) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
}

func NewImages(client *minio.Client, bucket string) *Images {
	return &Images{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket on first start.
func (i *Images) EnsureBucket(ctx context.Context) error {
	exists, err := i.client.BucketExists(ctx, i.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := i.client.MakeBucket(ctx, i.bucket, minio.MakeBucketOptions{}); err != nil {
		return err
	}
	logrus.WithField("bucket", i.bucket).Info("✅ MinIO bucket created")
	return nil
}

// ObjectKey builds the key of a new image for a product.
func ObjectKey(productID uint, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return "", ErrUnsupportedImage
	}
	return path.Join("products", fmt.Sprint(productID), uuid.NewString()+ext), nil
}

// Upload stores the image and returns its object key.
func (i *Images) Upload(ctx context.Context, productID uint, r io.Reader, size int64, contentType string) (string, error) {
	key, err := ObjectKey(productID, contentType)
	if err != nil {
		return "", err
	}
	_, err = i.client.PutObject(ctx, i.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// URL returns a presigned GET URL for an object key.
func (i *Images) URL(ctx context.Context, key string) (string, error) {
	u, err := i.client.PresignedGetObject(ctx, i.bucket, key, ImageURLExpiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
