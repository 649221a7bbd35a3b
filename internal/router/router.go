package router

import (
	"time"

	"facturador/internal/afip"
	"facturador/internal/config"
	"facturador/internal/handler"
	"facturador/internal/middleware"
	"facturador/internal/service"

	"github.com/gin-gonic/gin"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← AFIP clients ← Credential
func New(cfg *config.Config, cred *afip.Credential, auth *afip.AuthClient, padron *afip.PadronClient, wsfe *afip.WSFEClient) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(300, time.Minute))

	// ── Services ─────────────────────────────────────────────────────────────
	fiscalSvc := service.NewFiscalService(cred, auth, padron, wsfe)

	// ── Handlers ─────────────────────────────────────────────────────────────
	fiscalH := handler.NewFiscalHandler(fiscalSvc)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(string(cred.Environment), map[string]func() afip.BreakerState{
		"wsaa":   auth.BreakerState,
		"padron": padron.BreakerState,
		"wsfe":   wsfe.BreakerState,
	}))

	v1 := r.Group("/v1")
	{
		v1.GET("/padron/:cuit", fiscalH.ConsultarPadron)
		v1.GET("/comprobantes/ultimo-numero", fiscalH.UltimoNumero)
		v1.POST("/comprobantes/autorizar", fiscalH.Autorizar)
	}

	return r
}
