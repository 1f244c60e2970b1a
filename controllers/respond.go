package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/middleware"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/services"
	"github.com/kendall-kelly/procurement-api/utils"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
}

// respondServiceError maps a service failure onto the error envelope.
// Anything unrecognized is logged and reported as a 500.
func respondServiceError(c *gin.Context, err error) {
	var (
		notFound  *workflow.NotFoundError
		badState  *workflow.InvalidStateError
		invalid   *workflow.ValidationError
		forbidden *workflow.ForbiddenError
		conflict  *workflow.ConflictError
		uploadErr *utils.FileUploadError
	)
	switch {
	case errors.As(err, &notFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", notFound.Error(), nil)
	case errors.As(err, &badState):
		respondError(c, http.StatusBadRequest, "INVALID_STATE", badState.Error(), gin.H{
			"current_status":  badState.Current,
			"action":          badState.Action,
			"allowed_actions": badState.Allowed,
		})
	case errors.As(err, &invalid):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", invalid.Error(), gin.H{"field": invalid.Field})
	case errors.As(err, &forbidden):
		respondError(c, http.StatusForbidden, "FORBIDDEN", forbidden.Error(), nil)
	case errors.As(err, &conflict):
		respondError(c, http.StatusConflict, "CONFLICT", conflict.Error(), nil)
	case errors.As(err, &uploadErr):
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message, nil)
	case errors.Is(err, services.ErrStorageUnavailable):
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", err.Error(), nil)
	default:
		config.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "The request could not be completed", nil)
	}
}

// actor returns the registered caller. Routes always run LoadCurrentUser
// first, so a nil here means the handler was mounted without it.
func actor(c *gin.Context) (*models.User, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return nil, false
	}
	return user, true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}
