package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ticketone/sync/internal/model"
	"ticketone/sync/internal/security"
)

func channelParam(c *gin.Context) (model.Channel, bool) {
	channel, err := model.ParseChannel(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return "", false
	}
	return channel, true
}

type loginData struct {
	Token string `json:"token"`
	model.Identity
}

func (h HandlerSet) Login(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}

	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	identity, hash, err := h.store.Account(channel, req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err := security.CheckPassword(req.Password, hash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := security.GenerateAccessToken(h.cfg.Security.JWTSecret, string(channel), identity.ID, identity.Email, h.cfg.Security.JWTTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("sign access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "login successful",
		"data":    loginData{Token: token, Identity: identity},
	})
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}

	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	if channel == model.ChannelOrganizer && strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization name is required"})
		return
	}

	hash, err := security.HashPassword(req.Password, h.params)
	if err != nil {
		h.log.Error().Err(err).Msg("hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register"})
		return
	}

	identity, err := h.store.Register(channel, req, hash)
	if errors.Is(err, ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		h.storeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "registered successfully",
		"data":    identity,
	})
}
