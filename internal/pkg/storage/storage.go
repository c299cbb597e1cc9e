package storage

import (
	"context"
	"io"
)

// Storage 二进制产物存储后端
// 分镜帧图片等生成产物的落盘与访问，返回的URL直接写回前期制作文档。
type Storage interface {
	// Upload 上传产物并返回可访问URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 读取产物内容
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除产物，不存在视为成功
	Delete(ctx context.Context, key string) error

	// Exists 检查产物是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Type 后端类型标识
	Type() string
}

// 支持的后端类型
const (
	TypeLocal = "local" // 本地文件系统
	TypeOSS   = "oss"   // 阿里云OSS
)
