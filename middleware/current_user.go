package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const currentUserKey = "current_user"

// LoadCurrentUser resolves the token subject to a registered user. The
// stored role, not the token's, is what authorizes actions.
func LoadCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID, err := GetUserID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Could not extract user information",
				},
			})
			return
		}

		var user models.User
		err = config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			config.L().Error("load current user", zap.String("user_id", auth0ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "The request could not be completed",
				},
			})
			return
		}
		if err != nil {
			config.L().Debug("unregistered caller", zap.String("user_id", auth0ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_REGISTERED",
					"message": "User profile not found. Please create a profile first.",
				},
			})
			return
		}

		c.Set(currentUserKey, &user)
		c.Next()
	}
}

// CurrentUser returns the user stored by LoadCurrentUser, or nil
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(currentUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// RequireRole lets the request through only when the current user holds one
// of roles.
func RequireRole(roles ...workflow.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).Is(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Your role does not permit this action",
				},
			})
			return
		}
		c.Next()
	}
}
