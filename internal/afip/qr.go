package afip

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

// qrBaseURL is AFIP's published landing URL; the encoded payload travels in
// the `p` query parameter.
const qrBaseURL = "https://www.afip.gob.ar/fe/qr/?p="

// QRPayload is the compliance QR content for an authorized invoice, field
// names and types fixed by AFIP's published scheme (version 1).
type QRPayload struct {
	Ver        int     `json:"ver"`
	Fecha      string  `json:"fecha"` // yyyy-mm-dd
	Cuit       int64   `json:"cuit"`
	PtoVta     int     `json:"ptoVta"`
	TipoCmp    int     `json:"tipoCmp"`
	NroCmp     int64   `json:"nroCmp"`
	Importe    float64 `json:"importe"`
	Moneda     string  `json:"moneda"`
	Ctz        float64 `json:"ctz"`
	TipoDocRec int     `json:"tipoDocRec"`
	NroDocRec  int64   `json:"nroDocRec"`
	TipoCodAut string  `json:"tipoCodAut"` // "E" = CAE
	CodAut     int64   `json:"codAut"`
}

// BuildQR assembles the QR payload for an authorized invoice. Pure function:
// no network, no crypto. Missing inputs are caller contract violations.
func BuildQR(req AuthorizationRequest, cred *Credential, res *AuthorizationResult) (QRPayload, error) {
	if res == nil || !res.Authorized || res.CAE == "" {
		return QRPayload{}, fmt.Errorf("qr: se requiere un comprobante autorizado con CAE")
	}
	if cred == nil || cred.CUIT == "" {
		return QRPayload{}, fmt.Errorf("qr: falta el CUIT emisor")
	}
	cuit, err := strconv.ParseInt(cred.CUIT, 10, 64)
	if err != nil {
		return QRPayload{}, fmt.Errorf("qr: CUIT emisor no numerico: %w", err)
	}
	cae, err := strconv.ParseInt(res.CAE, 10, 64)
	if err != nil {
		return QRPayload{}, fmt.Errorf("qr: CAE no numerico: %w", err)
	}
	tipoCmp, ok := InvoiceTypeCode(req.InvoiceType)
	if !ok {
		return QRPayload{}, fmt.Errorf("qr: tipo de comprobante desconocido '%s'", req.InvoiceType)
	}
	docTipo, docNro, err := buyerDoc(req)
	if err != nil {
		return QRPayload{}, err
	}

	return QRPayload{
		Ver:        1,
		Fecha:      req.IssueDate.Format("2006-01-02"),
		Cuit:       cuit,
		PtoVta:     req.PuntoVenta,
		TipoCmp:    tipoCmp,
		NroCmp:     req.Number,
		Importe:    req.Total.InexactFloat64(),
		Moneda:     "PES",
		Ctz:        1,
		TipoDocRec: docTipo,
		NroDocRec:  docNro,
		TipoCodAut: "E",
		CodAut:     cae,
	}, nil
}

// Encode serializes the payload to compact JSON and base64 per the scheme.
func (p QRPayload) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("qr: no se pudo serializar el payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// URL returns the scannable URL embedding the encoded payload.
func (p QRPayload) URL() (string, error) {
	enc, err := p.Encode()
	if err != nil {
		return "", err
	}
	return qrBaseURL + enc, nil
}

// PNG renders the QR image at size×size pixels.
func (p QRPayload) PNG(size int) ([]byte, error) {
	url, err := p.URL()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}
