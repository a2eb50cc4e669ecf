package model

import (
	"time"
)

// UserModel 用户模型
type UserModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name  string `json:"name" gorm:"not null" binding:"required"`
	Email string `json:"email" gorm:"uniqueIndex;not null"`
	Phone string `json:"phone"`

	// bcrypt 哈希，注册/登录用例显式写入，不走保存钩子
	PasswordHash string `json:"-" gorm:"not null"`

	Role UserRole `json:"role" gorm:"default:'donor'"`
}

// UserRole 用户角色
type UserRole string

const (
	UserRoleDonor UserRole = "donor" // 捐款人
	UserRoleAdmin UserRole = "admin" // 管理员
)

// TableName 自定义表名
func (UserModel) TableName() string {
	return "users"
}
