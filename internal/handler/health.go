package handler

import (
	"net/http"

	"facturador/internal/afip"

	"github.com/gin-gonic/gin"
)

// Health returns a JSON health check response: liveness, the configured AFIP
// environment and the circuit state of each upstream service family. Never
// exposes credentials or internals.
func Health(entorno string, circuitos map[string]func() afip.BreakerState) gin.HandlerFunc {
	return func(c *gin.Context) {
		estados := make(map[string]string, len(circuitos))
		for nombre, state := range circuitos {
			estados[nombre] = state().String()
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"entorno":   entorno,
			"circuitos": estados,
		})
	}
}
