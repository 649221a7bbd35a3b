package afip

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRequest marks local validation failures: the request never left
// the process and the authority was not contacted.
var ErrInvalidRequest = errors.New("solicitud de autorizacion invalida")

// TaxEntry is one row of the IVA breakdown.
type TaxEntry struct {
	RateID string          // internal id, e.g. "iva_21"
	Base   decimal.Decimal // taxable base for this rate
	Amount decimal.Decimal // tax for this rate
}

// AuthorizationRequest carries the pre-aggregated totals of one invoice.
// Line items never reach this package.
type AuthorizationRequest struct {
	PuntoVenta     int
	InvoiceType    string // internal id, e.g. "factura_b"
	Number         int64
	IssueDate      time.Time
	Net            decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	Breakdown      []TaxEntry
	BuyerDocType   string // "cuit" | "cuil" | "dni" | "" (consumidor final)
	BuyerDocNumber int64
}

// centTolerance absorbs rounding drift between the caller's line-item math
// and the aggregated totals.
var centTolerance = decimal.NewFromFloat(0.01)

// Validate enforces the arithmetic invariants locally, before any network
// call: breakdown bases sum to Net, breakdown taxes sum to Tax, and
// Net + Tax equals Total, all within one cent.
func (r AuthorizationRequest) Validate() error {
	if r.PuntoVenta <= 0 {
		return fmt.Errorf("%w: punto de venta invalido", ErrInvalidRequest)
	}
	if r.Number <= 0 {
		return fmt.Errorf("%w: numero de comprobante invalido", ErrInvalidRequest)
	}
	if r.IssueDate.IsZero() {
		return fmt.Errorf("%w: falta la fecha de emision", ErrInvalidRequest)
	}

	sumBase, sumTax := decimal.Zero, decimal.Zero
	for _, e := range r.Breakdown {
		sumBase = sumBase.Add(e.Base)
		sumTax = sumTax.Add(e.Amount)
	}
	if sumBase.Sub(r.Net).Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: las bases imponibles (%s) no suman el neto (%s)",
			ErrInvalidRequest, sumBase, r.Net)
	}
	if sumTax.Sub(r.Tax).Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: los importes de IVA (%s) no suman el total de IVA (%s)",
			ErrInvalidRequest, sumTax, r.Tax)
	}
	if r.Net.Add(r.Tax).Sub(r.Total).Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: neto (%s) + IVA (%s) no coincide con el total (%s)",
			ErrInvalidRequest, r.Net, r.Tax, r.Total)
	}
	return nil
}

// AuthorizationResult is the definitive outcome of one authorization attempt:
// either a CAE with its expiry, or the authority's rejection reason. A
// duplicate number always comes back rejected, never re-authorized.
type AuthorizationResult struct {
	Authorized bool
	CAE        string
	CAEExpiry  time.Time
	Rejection  string
}

// WSFEClient talks to WSFEv1: last-authorized number and CAE requests.
type WSFEClient struct {
	soap *soapClient
	url  string
}

func NewWSFEClient(url string, timeout time.Duration) *WSFEClient {
	return &WSFEClient{soap: newSOAPClient(timeout), url: url}
}

// BreakerState reports the circuit state of the billing transport.
func (c *WSFEClient) BreakerState() BreakerState { return c.soap.breaker.State() }

const wsfeNS = "http://ar.gov.afip.dif.FEV1/"

type wsfeAuth struct {
	Token string `xml:"ar:Token"`
	Sign  string `xml:"ar:Sign"`
	Cuit  string `xml:"ar:Cuit"`
}

type wsfeError struct {
	Code int    `xml:"Code"`
	Msg  string `xml:"Msg"`
}

func joinWSFEErrors(errs []wsfeError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("(%d) %s", e.Code, e.Msg))
	}
	return strings.Join(parts, "; ")
}

// ── FECompUltimoAutorizado ────────────────────────────────────────────────────

type ultimoAutorizadoEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	NSSoap  string   `xml:"xmlns:soap,attr"`
	NSAr    string   `xml:"xmlns:ar,attr"`
	Body    struct {
		Op struct {
			Auth     wsfeAuth `xml:"ar:Auth"`
			PtoVta   int      `xml:"ar:PtoVta"`
			CbteTipo int      `xml:"ar:CbteTipo"`
		} `xml:"ar:FECompUltimoAutorizado"`
	} `xml:"soap:Body"`
}

// LastAuthorized returns the last invoice number the authority granted a CAE
// for, scoped to punto de venta and invoice type. 0 means none issued yet.
func (c *WSFEClient) LastAuthorized(ctx context.Context, puntoVenta int, invoiceType string, t Ticket, cred *Credential) (int64, error) {
	const op = "wsfe.ultimoAutorizado"

	if err := cred.Validate(); err != nil {
		return 0, err
	}
	cbteTipo, ok := InvoiceTypeCode(invoiceType)
	if !ok {
		return 0, fmt.Errorf("%w: tipo de comprobante desconocido '%s'", ErrInvalidRequest, invoiceType)
	}

	env := ultimoAutorizadoEnvelope{NSSoap: "http://schemas.xmlsoap.org/soap/envelope/", NSAr: wsfeNS}
	env.Body.Op.Auth = wsfeAuth{Token: t.Token, Sign: t.Sign, Cuit: cred.CUIT}
	env.Body.Op.PtoVta = puntoVenta
	env.Body.Op.CbteTipo = cbteTipo

	envelope, err := xml.Marshal(env)
	if err != nil {
		return 0, wrapError(KindResponseParseFailure, op, "no se pudo armar el envelope", err)
	}

	body, err := c.soap.post(ctx, c.url, wsfeNS+"FECompUltimoAutorizado", envelope)
	if err != nil {
		return 0, err
	}
	if fault := extractSOAPFault(op, body); fault != nil {
		return 0, fault
	}

	var resp struct {
		Result *struct {
			CbteNro *int64 `xml:"CbteNro"`
			Errors  struct {
				Errs []wsfeError `xml:"Err"`
			} `xml:"Errors"`
		} `xml:"Body>FECompUltimoAutorizadoResponse>FECompUltimoAutorizadoResult"`
	}
	if err := xml.Unmarshal(body, &resp); err != nil || resp.Result == nil {
		return 0, wrapError(KindResponseParseFailure, op, "respuesta de WSFE ilegible", err)
	}
	if len(resp.Result.Errors.Errs) > 0 {
		return 0, newError(KindAuthorityFault, op, joinWSFEErrors(resp.Result.Errors.Errs))
	}
	if resp.Result.CbteNro == nil {
		return 0, newError(KindResponseParseFailure, op, "la respuesta no contiene CbteNro")
	}
	return *resp.Result.CbteNro, nil
}

// ── FECAESolicitar ────────────────────────────────────────────────────────────

type alicIvaXML struct {
	ID      int    `xml:"ar:Id"`
	BaseImp string `xml:"ar:BaseImp"`
	Importe string `xml:"ar:Importe"`
}

type caeSolicitarEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	NSSoap  string   `xml:"xmlns:soap,attr"`
	NSAr    string   `xml:"xmlns:ar,attr"`
	Body    struct {
		Op struct {
			Auth wsfeAuth `xml:"ar:Auth"`
			Req  struct {
				Cab struct {
					CantReg  int `xml:"ar:CantReg"`
					PtoVta   int `xml:"ar:PtoVta"`
					CbteTipo int `xml:"ar:CbteTipo"`
				} `xml:"ar:FeCabReq"`
				Det struct {
					Detalle struct {
						Concepto   int    `xml:"ar:Concepto"`
						DocTipo    int    `xml:"ar:DocTipo"`
						DocNro     int64  `xml:"ar:DocNro"`
						CbteDesde  int64  `xml:"ar:CbteDesde"`
						CbteHasta  int64  `xml:"ar:CbteHasta"`
						CbteFch    string `xml:"ar:CbteFch"`
						ImpTotal   string `xml:"ar:ImpTotal"`
						ImpTotConc string `xml:"ar:ImpTotConc"`
						ImpNeto    string `xml:"ar:ImpNeto"`
						ImpOpEx    string `xml:"ar:ImpOpEx"`
						ImpTrib    string `xml:"ar:ImpTrib"`
						ImpIVA     string `xml:"ar:ImpIVA"`
						MonID      string `xml:"ar:MonId"`
						MonCotiz   string `xml:"ar:MonCotiz"`
						Iva        struct {
							Alicuotas []alicIvaXML `xml:"ar:AlicIva"`
						} `xml:"ar:Iva"`
					} `xml:"ar:FECAEDetRequest"`
				} `xml:"ar:FeDetReq"`
			} `xml:"ar:FeCAEReq"`
		} `xml:"ar:FECAESolicitar"`
	} `xml:"soap:Body"`
}

// Authorize submits one invoice for a CAE. Validation and code mapping happen
// locally first; the authority is only contacted with a well-formed request.
// Business rejections — duplicates included — come back as a Rejected result,
// not as an error.
func (c *WSFEClient) Authorize(ctx context.Context, req AuthorizationRequest, t Ticket, cred *Credential) (*AuthorizationResult, error) {
	const op = "wsfe.caeSolicitar"

	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cbteTipo, ok := InvoiceTypeCode(req.InvoiceType)
	if !ok {
		return nil, fmt.Errorf("%w: tipo de comprobante desconocido '%s'", ErrInvalidRequest, req.InvoiceType)
	}
	docTipo, docNro, err := buyerDoc(req)
	if err != nil {
		return nil, err
	}

	env := caeSolicitarEnvelope{NSSoap: "http://schemas.xmlsoap.org/soap/envelope/", NSAr: wsfeNS}
	body := &env.Body.Op
	body.Auth = wsfeAuth{Token: t.Token, Sign: t.Sign, Cuit: cred.CUIT}
	body.Req.Cab.CantReg = 1
	body.Req.Cab.PtoVta = req.PuntoVenta
	body.Req.Cab.CbteTipo = cbteTipo

	det := &body.Req.Det.Detalle
	det.Concepto = 1 // productos
	det.DocTipo = docTipo
	det.DocNro = docNro
	det.CbteDesde = req.Number
	det.CbteHasta = req.Number
	det.CbteFch = req.IssueDate.Format("20060102")
	det.ImpTotal = req.Total.StringFixed(2)
	det.ImpTotConc = "0.00"
	det.ImpNeto = req.Net.StringFixed(2)
	det.ImpOpEx = "0.00"
	det.ImpTrib = "0.00"
	det.ImpIVA = req.Tax.StringFixed(2)
	det.MonID = "PES" // local currency, rate 1
	det.MonCotiz = "1"
	for _, e := range req.Breakdown {
		rateCode, ok := TaxRateCode(e.RateID)
		if !ok {
			return nil, fmt.Errorf("%w: alicuota de IVA desconocida '%s'", ErrInvalidRequest, e.RateID)
		}
		det.Iva.Alicuotas = append(det.Iva.Alicuotas, alicIvaXML{
			ID:      rateCode,
			BaseImp: e.Base.StringFixed(2),
			Importe: e.Amount.StringFixed(2),
		})
	}

	envelope, err := xml.Marshal(env)
	if err != nil {
		return nil, wrapError(KindResponseParseFailure, op, "no se pudo armar el envelope", err)
	}

	respBody, err := c.soap.post(ctx, c.url, wsfeNS+"FECAESolicitar", envelope)
	if err != nil {
		return nil, err
	}
	if fault := extractSOAPFault(op, respBody); fault != nil {
		return nil, fault
	}
	return parseCAEResponse(respBody)
}

func buyerDoc(req AuthorizationRequest) (int, int64, error) {
	switch req.BuyerDocType {
	case "":
		return DocTypeConsumidorFinal, 0, nil
	case "cuit":
		return DocTypeCUIT, req.BuyerDocNumber, nil
	case "cuil":
		return DocTypeCUIL, req.BuyerDocNumber, nil
	case "dni":
		return DocTypeDNI, req.BuyerDocNumber, nil
	}
	return 0, 0, fmt.Errorf("%w: tipo de documento desconocido '%s'", ErrInvalidRequest, req.BuyerDocType)
}

func parseCAEResponse(body []byte) (*AuthorizationResult, error) {
	const op = "wsfe.caeSolicitar"

	var resp struct {
		Result *struct {
			Cab struct {
				Resultado string `xml:"Resultado"`
			} `xml:"FeCabResp"`
			Det struct {
				Responses []struct {
					Resultado     string `xml:"Resultado"`
					CAE           string `xml:"CAE"`
					CAEFchVto     string `xml:"CAEFchVto"`
					Observaciones struct {
						Obs []wsfeError `xml:"Obs"`
					} `xml:"Observaciones"`
				} `xml:"FECAEDetResponse"`
			} `xml:"FeDetResp"`
			Errors struct {
				Errs []wsfeError `xml:"Err"`
			} `xml:"Errors"`
		} `xml:"Body>FECAESolicitarResponse>FECAESolicitarResult"`
	}
	if err := xml.Unmarshal(body, &resp); err != nil || resp.Result == nil {
		return nil, wrapError(KindResponseParseFailure, op, "respuesta de WSFE ilegible", err)
	}
	result := resp.Result

	if len(result.Det.Responses) > 0 {
		det := result.Det.Responses[0]
		if det.Resultado == "A" {
			if det.CAE == "" {
				return nil, newError(KindResponseParseFailure, op, "resultado aprobado sin CAE")
			}
			out := &AuthorizationResult{Authorized: true, CAE: det.CAE}
			if vto, perr := time.Parse("20060102", det.CAEFchVto); perr == nil {
				out.CAEExpiry = vto
			}
			return out, nil
		}
		reason := joinWSFEErrors(det.Observaciones.Obs)
		if reason == "" {
			reason = joinWSFEErrors(result.Errors.Errs)
		}
		if reason == "" {
			reason = "comprobante rechazado sin observaciones"
		}
		return &AuthorizationResult{Rejection: reason}, nil
	}

	// No per-invoice detail: request-level rejection (duplicate number lands
	// here with error 10016).
	if len(result.Errors.Errs) > 0 {
		return &AuthorizationResult{Rejection: joinWSFEErrors(result.Errors.Errs)}, nil
	}
	return nil, newError(KindResponseParseFailure, op, "la respuesta no contiene resultado ni errores")
}
