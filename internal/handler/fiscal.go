package handler

import (
	"net/http"

	"facturador/internal/apierror"
	"facturador/internal/dto"
	"facturador/internal/service"

	"github.com/gin-gonic/gin"
)

type FiscalHandler struct{ svc service.FiscalService }

func NewFiscalHandler(svc service.FiscalService) *FiscalHandler { return &FiscalHandler{svc: svc} }

// ConsultarPadron resolves a CUIT against the AFIP registry
// (GET /v1/padron/:cuit). When the registry is unreachable the response
// degrades to the prefix inference with "fallback": true.
func (h *FiscalHandler) ConsultarPadron(c *gin.Context) {
	cuit := c.Param("cuit")
	if len(cuit) != 11 {
		c.JSON(http.StatusBadRequest, apierror.New("CUIT invalido: se esperan 11 digitos"))
		return
	}

	resp, err := h.svc.ConsultarPadron(c.Request.Context(), cuit)
	if err != nil {
		writeFiscalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UltimoNumero returns the last CAE-authorized invoice number for the
// configured punto de venta (GET /v1/comprobantes/ultimo-numero?tipo=factura_b).
func (h *FiscalHandler) UltimoNumero(c *gin.Context) {
	tipo := c.Query("tipo")
	if tipo == "" {
		c.JSON(http.StatusBadRequest, apierror.New("falta el parametro 'tipo'"))
		return
	}

	resp, err := h.svc.UltimoNumero(c.Request.Context(), tipo)
	if err != nil {
		writeFiscalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Autorizar submits one invoice for a CAE (POST /v1/comprobantes/autorizar).
// Both outcomes are 200s: "aprobado" with CAE and QR, or "rechazado" with the
// authority's verbatim reason — the caller persists either one.
func (h *FiscalHandler) Autorizar(c *gin.Context) {
	var req dto.AutorizarRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Autorizar(c.Request.Context(), req)
	if err != nil {
		writeFiscalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
