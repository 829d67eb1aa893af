package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ticketone/sync/internal/mockapi/middleware"
	"ticketone/sync/internal/model"
)

func (h HandlerSet) Bookings(c *gin.Context) {
	bookings := h.store.Bookings(middleware.AccountID(c))
	c.JSON(http.StatusOK, gin.H{
		"message": "successfully retrieved",
		"data":    bookings,
		"count":   len(bookings),
	})
}

// CancelBooking succeeds for a booking that is already cancelled and
// says so in alreadyCancelled.
func (h HandlerSet) CancelBooking(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	already, err := h.store.CancelBooking(middleware.AccountID(c), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	message := "booking cancelled"
	if already {
		message = "booking already cancelled"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          message,
		"alreadyCancelled": already,
	})
}

func ticketKey(b model.Booking) string {
	return fmt.Sprintf("tickets/%d/booking-%d.txt", b.UserID, b.ID)
}

func renderTicket(b model.Booking) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TicketOne booking #%d\n", b.ID)
	fmt.Fprintf(&sb, "Event: %s\n", b.EventName)
	fmt.Fprintf(&sb, "Date: %s\n", b.EventDate.Format(time.RFC1123))
	fmt.Fprintf(&sb, "City: %s\n", b.City)
	fmt.Fprintf(&sb, "Seats: %d\n", b.Seats)
	return []byte(sb.String())
}

// Ticket renders the booking's ticket into object storage and returns a
// URL to it. Cancelled bookings have no ticket.
func (h HandlerSet) Ticket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	b, err := h.store.Booking(middleware.AccountID(c), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	if !b.IsActive() {
		c.JSON(http.StatusConflict, gin.H{"error": "booking is cancelled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	key := ticketKey(b)
	if err := h.objects.Store(ctx, key, "text/plain; charset=utf-8", renderTicket(b)); err != nil {
		h.log.Error().Err(err).Int64("booking", b.ID).Msg("store ticket")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate ticket"})
		return
	}
	u, err := h.objects.PresignGet(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate ticket url"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "ticket ready",
		"data":    u,
	})
}

func (h HandlerSet) BookSeats(c *gin.Context) {
	eventID, ok := idParam(c, "event_id")
	if !ok {
		return
	}
	var req model.BookSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	result, err := h.store.Book(middleware.AccountID(c), eventID, req.Seats)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "seats booked",
		"data":    result,
	})
}
