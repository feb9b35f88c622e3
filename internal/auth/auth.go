package auth

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"courier/internal/directory"
	"courier/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	HeaderID     = "Id"
	HeaderToken  = "Token"
	HeaderTarget = "Target"

	ctxUserID = "userID"
)

// Guard 校验 (id, token) 是否对应目录中的用户。
type Guard struct {
	dir *directory.Directory
}

func NewGuard(dir *directory.Directory) *Guard {
	return &Guard{dir: dir}
}

// Authenticate 仅当用户存在且令牌逐字节一致时返回 true，比较使用常数时间。
func (g *Guard) Authenticate(id models.UserID, token string) bool {
	rec, ok := g.dir.Lookup(id)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) == 1
}

// ParseUserID 解析请求头中的十进制用户 ID。
func ParseUserID(s string) (models.UserID, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return models.UserID(v), true
}

// Middleware 从 Id / Token 请求头鉴权，失败时以 401 终止请求。
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParseUserID(c.GetHeader(HeaderID))
		token := c.GetHeader(HeaderToken)
		if !ok || token == "" || !g.Authenticate(id, token) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(ctxUserID, id)
		c.Next()
	}
}

// GetUserID 返回 Middleware 写入上下文的调用方 ID。
func GetUserID(c *gin.Context) (models.UserID, bool) {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok2 := v.(models.UserID); ok2 {
			return id, true
		}
	}
	return 0, false
}
