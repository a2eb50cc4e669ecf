package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/odhis101/k3c-platform/internal/logic"
)

// UserHandler 用户处理器
type UserHandler struct {
	userLogic *logic.UserLogic
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userLogic *logic.UserLogic) *UserHandler {
	return &UserHandler{userLogic: userLogic}
}

// Register 注册
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userLogic.Register(&logic.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, logic.ErrEmailTaken) {
			ErrorResponse(c, http.StatusConflict, err.Error())
			return
		}
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	SuccessResponse(c, http.StatusCreated, "注册成功", user)
}

// Login 登录
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.userLogic.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, logic.ErrInvalidCredentials) {
			ErrorResponse(c, http.StatusUnauthorized, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "登录成功", gin.H{
		"token": token,
		"user":  user,
	})
}

// Me 获取当前用户信息
func (h *UserHandler) Me(c *gin.Context) {
	userId := c.GetInt64("user_id")

	user, err := h.userLogic.GetUser(userId)
	if err != nil {
		if errors.Is(err, logic.ErrUserNotFound) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "", user)
}
