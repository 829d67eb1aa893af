package mockapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ticketone/sync/internal/media/sniffer"
	"ticketone/sync/internal/mockapi/middleware"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/storage"
)

type uploadURLRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

func uploadPrefix(orgID int64) string {
	return fmt.Sprintf("events/uploads/%d/", orgID)
}

func (h HandlerSet) allowedType(contentType string) bool {
	contentType = sniffer.Normalize(contentType)
	for _, t := range h.cfg.Upload.AllowedTypes {
		if sniffer.Normalize(t) == contentType {
			return true
		}
	}
	return false
}

// UploadURL reserves events/uploads/{orgId}/{fileName} for the caller.
func (h HandlerSet) UploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	name := path.Base(strings.TrimSpace(req.FileName))
	if name == "" || name == "." || name == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileName is required"})
		return
	}
	if !h.allowedType(req.FileType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	key := uploadPrefix(middleware.AccountID(c)) + name
	u, err := h.objects.PresignPut(ctx, key, sniffer.Normalize(req.FileType))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate presigned url: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploadUrl":  u,
		"presignKey": key,
	})
}

func validateEventInput(in model.EventInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.New("event name is required")
	case in.Capacity <= 0:
		return errors.New("capacity must be positive")
	case in.Date.IsZero():
		return errors.New("event date is required")
	case strings.TrimSpace(in.City) == "":
		return errors.New("city is required")
	}
	return nil
}

func (h HandlerSet) CreateEvent(c *gin.Context) {
	var in model.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	if err := validateEventInput(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.AccountID(c)
	if in.Key != "" {
		if !strings.HasPrefix(in.Key, uploadPrefix(orgID)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image key does not belong to this organization"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		exists, err := h.objects.Exists(ctx, in.Key)
		if err != nil {
			h.log.Error().Err(err).Str("key", in.Key).Msg("check uploaded image")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check image"})
			return
		}
		if !exists {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image has not been uploaded"})
			return
		}
	}

	org, err := h.store.AccountByID(model.ChannelOrganizer, orgID)
	if err != nil {
		h.storeError(c, err)
		return
	}

	event := h.store.CreateEvent(org, in)
	c.JSON(http.StatusCreated, gin.H{
		"message": "event created successfully",
		"data":    event,
	})
}

func objectKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

// PutObject accepts the raw body for a presigned URL, the way a bucket
// would: 403 for a bad or reused token, 413 past the size limit.
func (h HandlerSet) PutObject(c *gin.Context) {
	key := objectKey(c)
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.cfg.Upload.MaxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}
	if int64(len(data)) > h.cfg.Upload.MaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "object too large"})
		return
	}

	err = h.sink.Put(c.Query("token"), key, sniffer.Normalize(c.GetHeader("Content-Type")), data)
	switch {
	case errors.Is(err, storage.ErrNoReservation), errors.Is(err, storage.ErrContentType):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (h HandlerSet) GetObject(c *gin.Context) {
	obj, err := h.sink.Get(objectKey(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
