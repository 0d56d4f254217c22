package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pageza/foodgram/backend/config"
)

// ImageStore persists recipe pictures and returns the URL they are served from.
type ImageStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// DecodedImage is a validated picture ready to be stored.
type DecodedImage struct {
	Data        []byte
	ContentType string
	Extension   string
}

const imageKeyPrefix = "recipes/images/"

// Key returns a fresh object key for the image.
func (d *DecodedImage) Key() string {
	return fmt.Sprintf("%s%s%s", imageKeyPrefix, uuid.New().String(), d.Extension)
}

// ImageKeyFromURL recovers the object key from a stored image URL.
// Returns "" for URLs that were not produced by an ImageStore.
func ImageKeyFromURL(url string) string {
	i := strings.LastIndex(url, imageKeyPrefix)
	if i < 0 {
		return ""
	}
	return url[i:]
}

// DecodeImage parses a base64 data URI ("data:image/png;base64,...") or bare
// base64 payload and checks that the bytes are actually an image.
func DecodeImage(raw string) (*DecodedImage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrImageRequired
	}
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 || !strings.Contains(raw[:idx], ";base64") {
			return nil, ErrInvalidImage
		}
		payload = raw[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidImage.WithMessage("image is not valid base64")
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, ErrInvalidImage.WithMessage("unsupported image type %s", mt.String())
	}
	return &DecodedImage{Data: data, ContentType: mt.String(), Extension: mt.Extension()}, nil
}

// S3ImageStore uploads pictures to an S3 bucket.
type S3ImageStore struct {
	s3Config *config.S3Config
}

// NewS3ImageStore creates a new S3ImageStore instance
func NewS3ImageStore(s3Config *config.S3Config) *S3ImageStore {
	return &S3ImageStore{s3Config: s3Config}
}

// Save uploads image data to S3 and returns the public URL
func (s *S3ImageStore) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.s3Config.PublicURL(key), nil
}

// Delete removes an uploaded object
func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.s3Config.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.s3Config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}
