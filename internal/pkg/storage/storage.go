package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"missionlog/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
)

var ErrForeignURL = errors.New("url does not belong to the image bucket")

type Config struct {
	Endpoint  string `env:"STORAGE_ENDPOINT,required"`
	Region    string `env:"STORAGE_REGION,default=us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET,required"`
	AccessKey string `env:"STORAGE_ACCESS_KEY,required"`
	SecretKey string `env:"STORAGE_SECRET_KEY,required"`
	PublicURL string `env:"STORAGE_PUBLIC_URL"`
	Root      string `env:"STORAGE_ROOT,default=missions"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, err
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")
	cfg.Root = strings.Trim(cfg.Root, "/")
	return &cfg, nil
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ImageStorage keeps execution proof images in an S3 compatible bucket.
type ImageStorage struct {
	client objectAPI
	cfg    *Config
}

func NewImageStorage(ctx context.Context, cfg *Config) (*ImageStorage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &ImageStorage{client, cfg}, nil
}

func (s *ImageStorage) Store(ctx context.Context, file *models.ImageUpload, userID int64, missionID int64) (string, error) {
	key := s.objectKey(file, userID, missionID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          file.Body,
		ContentType:   aws.String(file.ContentType),
		ContentLength: aws.Int64(file.Size),
		CacheControl:  aws.String("public, max-age=31536000"),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", err
	}

	return s.cfg.PublicURL + "/" + key, nil
}

// Delete is a no-op for an empty url. S3 does not report deleting a missing
// key as an error.
func (s *ImageStorage) Delete(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}

	key, ok := strings.CutPrefix(url, s.cfg.PublicURL+"/")
	if !ok || key == "" {
		return ErrForeignURL
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *ImageStorage) objectKey(file *models.ImageUpload, userID int64, missionID int64) string {
	ext := strings.ToLower(path.Ext(file.Filename))
	if ext == "" {
		ext = extensionFor(file.ContentType)
	}
	return path.Join(s.cfg.Root, fmt.Sprint(missionID), "users", fmt.Sprint(userID), uuid.NewString()+ext)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
