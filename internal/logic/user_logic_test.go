package logic

import (
	"strings"
	"testing"

	"github.com/odhis101/k3c-platform/internal/auth"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserLogic(db *gorm.DB) *UserLogic {
	issuer := auth.NewTokenIssuer(config.AuthConfig{JWTSecret: "test-secret", ExpiryHours: 1})
	return NewUserLogic(db, issuer)
}

func TestRegister(t *testing.T) {
	db := newTestDB(t)
	u := newUserLogic(db)

	user, err := u.Register(&RegisterInput{
		Name:     "Jane Wanjiku",
		Email:    "Jane@Example.com",
		Phone:    "0712345678",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleDonor, user.Role)

	// 邮箱统一小写存储
	assert.Equal(t, "jane@example.com", user.Email)

	// 明文密码不落库
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
	assert.True(t, auth.CheckPassword(user.PasswordHash, "password123"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	u := newUserLogic(db)

	in := &RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "password123"}
	_, err := u.Register(in)
	require.NoError(t, err)

	// 大小写不同仍算重复
	_, err = u.Register(&RegisterInput{Name: "Other", Email: "JANE@example.com", Password: "password456"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	db := newTestDB(t)
	u := newUserLogic(db)

	cases := []RegisterInput{
		{Name: "", Email: "jane@example.com", Password: "password123"},
		{Name: "Jane", Email: "not-an-email", Password: "password123"},
		{Name: "Jane", Email: "jane@example.com", Password: "short"},
	}
	for _, in := range cases {
		_, err := u.Register(&in)
		assert.Error(t, err)
	}
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	u := newUserLogic(db)

	_, err := u.Register(&RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	user, token, err := u.Login("jane@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// 签发的令牌可被同一密钥解析回来
	issuer := auth.NewTokenIssuer(config.AuthConfig{JWTSecret: "test-secret", ExpiryHours: 1})
	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.Id, claims.UserId)
	assert.Equal(t, model.UserRoleDonor, claims.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	db := newTestDB(t)
	u := newUserLogic(db)

	_, err := u.Register(&RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = u.Login("jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// 不存在的用户返回同一个错误，不暴露账号是否注册
	_, _, err = u.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	u := newUserLogic(db)

	seeded := seedUser(t, db, "Jane")
	user, err := u.GetUser(seeded.Id)
	require.NoError(t, err)
	assert.Equal(t, seeded.Email, user.Email)

	_, err = u.GetUser(999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
