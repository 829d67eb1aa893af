package mockapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ticketone/sync/internal/config"
	"ticketone/sync/internal/mockapi/middleware"
	"ticketone/sync/internal/model"
	"ticketone/sync/internal/security"
	"ticketone/sync/internal/storage"
)

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	store   *Store
	objects storage.Backend
	// sink is set when objects are held in-process; it also serves the
	// presigned URLs.
	sink   *storage.Sink
	params security.Argon2Params
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, store *Store, objects storage.Backend) HandlerSet {
	h := HandlerSet{
		log:     log,
		cfg:     cfg,
		store:   store,
		objects: objects,
		params:  security.DefaultParams,
	}
	if sink, ok := objects.(*storage.Sink); ok {
		h.sink = sink
	}
	return h
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth/:channel")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.RegisterAccount)

	router.GET("/events", h.ListEvents)
	router.GET("/events/upcoming", h.UpcomingEvents)
	router.GET("/event/:id", h.GetEvent)
	router.GET("/event/image", h.EventImage)

	org := router.Group("",
		middleware.Auth(h.cfg.Security.JWTSecret),
		middleware.RequireChannel(model.ChannelOrganizer),
	)
	org.GET("/organization/my-events", h.MyEvents)
	org.POST("/event/image/upload-url", h.UploadURL)
	org.POST("/create-event", h.CreateEvent)
	org.PUT("/update/event/:id", h.UpdateEvent)
	org.PUT("/delete/event/:id", h.DeleteEvent)

	user := router.Group("",
		middleware.Auth(h.cfg.Security.JWTSecret),
		middleware.RequireChannel(model.ChannelAttendee),
	)
	user.GET("/user/bookings", h.Bookings)
	user.PUT("/booking/:id", h.CancelBooking)
	user.GET("/pdf/booking/:id", h.Ticket)
	user.POST("/book-seats/:event_id", h.BookSeats)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// storeError maps Store sentinels to responses. Anything unrecognised is
// a 500 and gets logged.
func (h HandlerSet) storeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrNotEnoughSeats):
		status = http.StatusConflict
	case errors.Is(err, ErrCapacityTooLow), errors.Is(err, ErrInvalidQuantity):
		status = http.StatusBadRequest
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unexpected store error")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
