package apikey

import (
	"crypto/subtle"
	"strings"

	"ReqGraph/internal/config"
	"ReqGraph/pkg/back"
	"ReqGraph/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// Auth 基于静态 API Key 的访问控制。
// 未配置任何 key 时放行，便于本地开发。
func Auth() gin.HandlerFunc {
	conf := config.GetConfig()
	header := strings.TrimSpace(conf.AuthConfig.HeaderName)
	if header == "" {
		header = "X-API-Key"
	}
	keys := make([]string, 0, len(conf.AuthConfig.APIKeys))
	for _, k := range conf.AuthConfig.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		got := strings.TrimSpace(c.GetHeader(header))
		if got == "" {
			back.Error(c, xerr.ErrAPIKey.Code, xerr.ErrAPIKey.Message)
			c.Abort()
			return
		}
		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(got), []byte(k)) == 1 {
				c.Next()
				return
			}
		}

		back.Error(c, xerr.ErrAPIKey.Code, xerr.ErrAPIKey.Message)
		c.Abort()
	}
}
