package mockapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	storage := "s3"
	if h.sink != nil {
		storage = "memory"
	}
	c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Storage:     storage,
		Environment: h.cfg.Environment,
	})
}
