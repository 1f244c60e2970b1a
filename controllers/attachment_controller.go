package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/services"
)

// UploadAttachment handles POST /api/v1/orders/:id/attachments (multipart
// field "file")
func UploadAttachment(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "A file must be uploaded in the 'file' field", nil)
		return
	}
	attachment, err := services.NewAttachmentService(config.GetDB()).Upload(c.Request.Context(), user, c.Param("id"), fileHeader)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, attachment)
}

// ListAttachments handles GET /api/v1/orders/:id/attachments
func ListAttachments(c *gin.Context) {
	attachments, err := services.NewAttachmentService(config.GetDB()).List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, attachments)
}

// DeleteAttachment handles DELETE /api/v1/attachments/:id
func DeleteAttachment(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	if err := services.NewAttachmentService(config.GetDB()).Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Attachment deleted",
	})
}
