package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/middleware"
	"github.com/kendall-kelly/procurement-api/services"
	"github.com/kendall-kelly/procurement-api/workflow"
	"go.uber.org/zap"
)

// CreateUserRequest carries the profile when tokens are not issued by Auth0
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUser handles POST /api/v1/users - registers the token's subject.
// The role comes from the token; name and email come from Auth0's
// /userinfo endpoint, or from the body when running on locally issued tokens.
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token", nil)
		return
	}

	role, err := middleware.GetTokenRole(c)
	if err != nil {
		code := "MISSING_ROLE"
		if authErr, ok := err.(*middleware.AuthError); ok {
			code = authErr.Code
		}
		respondError(c, http.StatusBadRequest, code, err.Error(), nil)
		return
	}

	var info services.UserInfo
	if cfg := config.GetConfig(); cfg != nil && cfg.UsesAuth0() {
		accessToken, err := middleware.GetAccessToken(c)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found", nil)
			return
		}
		profile, err := services.NewAuth0Service(cfg).GetUserInfo(c.Request.Context(), accessToken)
		if err != nil {
			config.L().Warn("userinfo lookup failed", zap.String("user_id", auth0ID), zap.Error(err))
			respondError(c, http.StatusBadGateway, "AUTH0_ERROR", "Failed to fetch user information from Auth0", nil)
			return
		}
		info = *profile
	} else {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		info = services.UserInfo{Sub: auth0ID, Name: req.Name, Email: req.Email}
	}

	users := services.NewUserService(config.GetDB())
	user, err := users.Register(c.Request.Context(), auth0ID, role, info)
	if err != nil {
		if workflow.IsConflict(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists", nil)
			return
		}
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me
func GetMyProfile(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me
func UpdateMyProfile(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updated, err := services.NewUserService(config.GetDB()).UpdateProfile(c.Request.Context(), user, req)
	if err != nil {
		if workflow.IsConflict(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already in use", nil)
			return
		}
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, updated)
}

// ListUsers handles GET /api/v1/users?role=engineer
func ListUsers(c *gin.Context) {
	users, err := services.NewUserService(config.GetDB()).List(c.Request.Context(), c.Query("role"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}
