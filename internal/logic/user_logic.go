package logic

import (
	"errors"
	"strings"

	"github.com/odhis101/k3c-platform/internal/auth"
	"github.com/odhis101/k3c-platform/internal/model"
	"gorm.io/gorm"
)

// UserLogic 用户业务逻辑
type UserLogic struct {
	db     *gorm.DB
	issuer *auth.TokenIssuer
}

// NewUserLogic 创建用户业务逻辑
func NewUserLogic(db *gorm.DB, issuer *auth.TokenIssuer) *UserLogic {
	return &UserLogic{db: db, issuer: issuer}
}

// RegisterInput 注册入参
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register 注册用户，密码哈希在这里显式完成
func (u *UserLogic) Register(in *RegisterInput) (*model.UserModel, error) {
	if err := u.validateRegister(in); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	// 检查邮箱是否已注册
	var count int64
	if err := u.db.Model(&model.UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.UserModel{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         model.UserRoleDonor,
	}
	if err := u.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// Login 登录，校验通过后签发令牌
func (u *UserLogic) Login(email, password string) (*model.UserModel, string, error) {
	var user model.UserModel
	err := u.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := u.issuer.Issue(&user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// GetUser 获取用户
func (u *UserLogic) GetUser(id int64) (*model.UserModel, error) {
	var user model.UserModel
	if err := u.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// validateRegister 验证注册数据
func (u *UserLogic) validateRegister(in *RegisterInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("姓名不能为空")
	}
	if !strings.Contains(in.Email, "@") {
		return errors.New("邮箱格式错误")
	}
	if len(in.Password) < 8 {
		return errors.New("密码长度不能少于8位")
	}
	return nil
}
