package queue

import (
	"context"
	"strings"
)

// BuildJob 一次文档图构建任务，Path 指向上传目录中的原始文件
type BuildJob struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// JobRunner 执行单个构建任务
type JobRunner interface {
	Process(ctx context.Context, job BuildJob) error
}

// Dispatcher 把构建任务交给后台执行，inline 与 kafka 两种实现
type Dispatcher interface {
	Dispatch(ctx context.Context, job BuildJob) error
	Close(ctx context.Context) error
}

func scrubErrMsg(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	low := strings.ToLower(s)
	if strings.Contains(low, "api_key") || strings.Contains(low, "apikey") || strings.Contains(low, "secret") || strings.Contains(s, "sk-") {
		return "redacted"
	}
	if len(s) > 255 {
		return s[:255]
	}
	return s
}
