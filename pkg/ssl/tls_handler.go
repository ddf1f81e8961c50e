package ssl

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// TlsHandler 在启用 HTTPS 时把明文请求重定向到 TLS 端口
func TlsHandler(host string, port int) gin.HandlerFunc {
	return func(c *gin.Context) {
		secureMiddleware := secure.New(secure.Options{
			SSLRedirect: true,
			SSLHost:     host + ":" + strconv.Itoa(port),
		})
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// secure 已写入重定向响应，直接结束处理链
			return
		}
		c.Next()
	}
}
