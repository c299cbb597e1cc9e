package storagefactory

import (
	"fmt"

	"fable/internal/config"
	"fable/internal/pkg/storage"
	"fable/internal/pkg/storage/local"
	"fable/internal/pkg/storage/oss"
)

// NewStorage 根据配置创建存储后端（分镜帧图片等二进制产物）
func NewStorage(cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case storage.TypeLocal:
		if cfg.Local == nil {
			return nil, fmt.Errorf("local storage config is required")
		}
		return local.New(cfg.Local.BasePath, cfg.Local.BaseURL)
	case storage.TypeOSS:
		if cfg.OSS == nil {
			return nil, fmt.Errorf("OSS storage config is required")
		}
		return oss.New(
			cfg.OSS.Endpoint,
			cfg.OSS.Bucket,
			cfg.OSS.AccessKeyID,
			cfg.OSS.AccessKeySecret,
		)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
