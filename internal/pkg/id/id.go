package id

import "github.com/google/uuid"

// New 生成UUID字符串
// 用于用户、故事圣经与请求ID。注意：值本身不含冒号，
// 复合存储键里的冒号分隔依赖这一点。
func New() string {
	return uuid.New().String()
}
