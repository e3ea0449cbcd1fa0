package handler

import (
	"micro-savings-wallet/internal/adapter/http/dto"
	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler manages account holders.
type UserHandler struct {
	userSvc ports.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userSvc ports.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userSvc.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Users fetched successfully", users)
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	user, err := h.userSvc.CreateUser(c.Request.Context(), ports.CreateUserRequest{
		Email: req.Email,
		Name:  req.Name,
		Role:  domain.UserRole(req.Role),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "User created successfully", user)
}

// Get handles GET /api/v1/users/:userId.
func (h *UserHandler) Get(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.userSvc.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "User fetched successfully", user)
}
