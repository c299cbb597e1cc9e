package oss

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"fable/internal/pkg/storage"
)

// Storage 阿里云OSS后端
type Storage struct {
	bucket     *oss.Bucket
	bucketName string
}

// New 创建阿里云OSS后端
func New(endpoint, bucketName, accessKeyID, accessKeySecret string) (*Storage, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Storage{
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

// Upload 上传产物并返回可访问URL
func (s *Storage) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	if err := s.bucket.PutObject(key, data, oss.ContentType(contentType)); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, s.bucket.Client.Config.Endpoint, key), nil
}

// Download 读取产物内容
func (s *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return body, nil
}

// Delete 删除产物
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists 检查产物是否存在
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.IsObjectExist(key)
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return exists, nil
}

// Type 后端类型标识
func (s *Storage) Type() string {
	return storage.TypeOSS
}
