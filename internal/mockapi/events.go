package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ticketone/sync/internal/mockapi/middleware"
	"ticketone/sync/internal/model"
)

const (
	defaultLimit = 10
	minLimit     = 10
)

// withImage fills ImageURL from the stored key. A failed presign only
// costs the picture, so it is logged and skipped.
func (h HandlerSet) withImage(ctx context.Context, e model.Event) model.Event {
	if e.Key == "" {
		return e
	}
	u, err := h.objects.PresignGet(ctx, e.Key)
	if err != nil {
		h.log.Warn().Err(err).Int64("event", e.ID).Msg("presign event image")
		return e
	}
	e.ImageURL = u
	return e
}

func (h HandlerSet) withImages(ctx context.Context, events []model.Event) []model.Event {
	for i := range events {
		events[i] = h.withImage(ctx, events[i])
	}
	return events
}

// ListEvents pages by event id. The client's cursor parameter is the
// last id of the previous page; "id" is accepted as an alias.
func (h HandlerSet) ListEvents(c *gin.Context) {
	raw := c.Query("cursor")
	if raw == "" {
		raw = c.DefaultQuery("id", "0")
	}
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cursor < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < minLimit {
		limit = minLimit
	}

	events := h.store.ListEvents(cursor, limit)
	hasNext := len(events) > limit
	if hasNext {
		events = events[:limit]
	}
	var nextCursor int64
	if hasNext {
		nextCursor = events[len(events)-1].ID
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "events retrieved",
		"data":        h.withImages(c.Request.Context(), events),
		"has_next":    hasNext,
		"next_cursor": nextCursor,
	})
}

func (h HandlerSet) GetEvent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	event, err := h.store.Event(id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("found event by id:%d", id),
		"data":    h.withImage(c.Request.Context(), event),
	})
}

func (h HandlerSet) EventImage(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image key is required"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	u, err := h.objects.PresignGet(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch presigned url: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageUrl": u})
}

func (h HandlerSet) UpcomingEvents(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}
	var exclude int64
	if raw := c.Query("exclude"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("wrong event id(%s) type, should be int", raw)})
			return
		}
		exclude = v
	}

	events := h.store.Upcoming(city, exclude)
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("served upcoming events for %s", city),
		"data":    h.withImages(c.Request.Context(), events),
	})
}

func (h HandlerSet) MyEvents(c *gin.Context) {
	events := h.store.OrgEvents(middleware.AccountID(c))
	c.JSON(http.StatusOK, gin.H{
		"message": "organization events",
		"data":    h.withImages(c.Request.Context(), events),
	})
}

func (h HandlerSet) UpdateEvent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var update model.EventUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	event, err := h.store.UpdateEvent(middleware.AccountID(c), id, update)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "event updated",
		"data":    event,
	})
}

func (h HandlerSet) DeleteEvent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEvent(middleware.AccountID(c), id); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}
