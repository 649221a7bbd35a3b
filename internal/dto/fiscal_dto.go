package dto

import (
	"github.com/shopspring/decimal"

	"facturador/internal/afip"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AlicuotaIVA struct {
	Alicuota string          `json:"alicuota"       validate:"required"` // iva_0 | iva_2_5 | iva_5 | iva_10_5 | iva_21 | iva_27
	Base     decimal.Decimal `json:"base_imponible" validate:"required"`
	Importe  decimal.Decimal `json:"importe"`
}

type AutorizarRequest struct {
	Tipo            string          `json:"tipo"           validate:"required"` // factura_a | factura_b | ...
	Numero          int64           `json:"numero"         validate:"required,min=1"`
	Fecha           string          `json:"fecha"          validate:"required,datetime=2006-01-02"`
	ImporteNeto     decimal.Decimal `json:"importe_neto"   validate:"required"`
	ImporteIVA      decimal.Decimal `json:"importe_iva"`
	ImporteTotal    decimal.Decimal `json:"importe_total"  validate:"required"`
	Alicuotas       []AlicuotaIVA   `json:"alicuotas"      validate:"required,min=1,dive"`
	DocTipoReceptor string          `json:"doc_tipo_receptor" validate:"omitempty,oneof=cuit cuil dni"`
	DocNroReceptor  int64           `json:"doc_nro_receptor"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// PadronResponse carries the verified registry record, or — when the registry
// could not be reached — only the person kind inferred from the CUIT prefix,
// explicitly flagged as a fallback.
type PadronResponse struct {
	CUIT        string               `json:"cuit"`
	Persona     *afip.TaxpayerRecord `json:"persona,omitempty"`
	TipoPersona afip.PersonKind      `json:"tipo_persona"`
	Fallback    bool                 `json:"fallback"`
	Error       string               `json:"error,omitempty"`
}

type UltimoNumeroResponse struct {
	UltimoNumero int64  `json:"ultimo_numero"`
	PuntoVenta   int    `json:"punto_venta"`
	Tipo         string `json:"tipo"`
	Entorno      string `json:"entorno"`
}

type QRResponse struct {
	Payload afip.QRPayload `json:"payload"`
	Encoded string         `json:"encoded"`
	URL     string         `json:"url"`
}

type AutorizacionResponse struct {
	Resultado      string      `json:"resultado"` // aprobado | rechazado
	CAE            string      `json:"cae,omitempty"`
	CAEVencimiento string      `json:"cae_vencimiento,omitempty"`
	Motivo         string      `json:"motivo,omitempty"`
	QR             *QRResponse `json:"qr,omitempty"`
}
