package directory

import (
	"crypto/rand"
	"math"
	"math/big"

	"courier/internal/models"
)

const (
	// TokenLength 是访问令牌的固定长度。
	TokenLength = 24
	tokenChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	idBound    = big.NewInt(math.MaxInt32)
	tokenBound = big.NewInt(int64(len(tokenChars)))
)

// NewID 从 crypto/rand 抽取 [0, 2^31-1) 区间内的用户 ID。
func NewID() (models.UserID, error) {
	n, err := rand.Int(rand.Reader, idBound)
	if err != nil {
		return 0, err
	}
	return models.UserID(n.Int64()), nil
}

// NewToken 生成 24 位 [a-zA-Z0-9] 随机令牌。
func NewToken() (string, error) {
	b := make([]byte, TokenLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, tokenBound)
		if err != nil {
			return "", err
		}
		b[i] = tokenChars[n.Int64()]
	}
	return string(b), nil
}

// ValidToken 检查令牌的长度与字符集。
func ValidToken(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
