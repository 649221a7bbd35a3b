package service

import (
	"context"
	"fmt"
	"time"

	"facturador/internal/afip"
	"facturador/internal/dto"

	"github.com/rs/zerolog/log"
)

// FiscalService exposes the three operations the sales workflow invokes:
// identity lookup, invoice sequence query and invoice authorization.
type FiscalService interface {
	ConsultarPadron(ctx context.Context, cuit string) (*dto.PadronResponse, error)
	UltimoNumero(ctx context.Context, tipo string) (*dto.UltimoNumeroResponse, error)
	Autorizar(ctx context.Context, req dto.AutorizarRequest) (*dto.AutorizacionResponse, error)
}

type fiscalService struct {
	cred   *afip.Credential
	auth   *afip.AuthClient
	padron *afip.PadronClient
	wsfe   *afip.WSFEClient
}

func NewFiscalService(cred *afip.Credential, auth *afip.AuthClient, padron *afip.PadronClient, wsfe *afip.WSFEClient) FiscalService {
	return &fiscalService{cred: cred, auth: auth, padron: padron, wsfe: wsfe}
}

// ── Consulta de padrón ────────────────────────────────────────────────────────

// padronProvider is one strategy in the ordered identity-lookup chain. prev
// carries the previous provider's failure so fallbacks can report it.
type padronProvider func(ctx context.Context, cuit string, prev error) (*dto.PadronResponse, error)

// ConsultarPadron walks the provider chain in priority order: the registry
// first, then the CUIT-prefix inference. A business rejection from the
// authority (e.g. nonexistent CUIT) aborts the chain — only infrastructure
// failures fall through to the inference, and its result is flagged as such.
func (s *fiscalService) ConsultarPadron(ctx context.Context, cuit string) (*dto.PadronResponse, error) {
	providers := []padronProvider{s.registryLookup, s.prefixInference}

	var prev error
	for _, p := range providers {
		resp, err := p(ctx, cuit, prev)
		if err == nil {
			return resp, nil
		}
		if afip.IsKind(err, afip.KindAuthorityFault) {
			return nil, err
		}
		log.Warn().Str("cuit", cuit).Err(err).Msg("padron: proveedor fallo, probando el siguiente")
		prev = err
	}
	return nil, prev
}

func (s *fiscalService) registryLookup(ctx context.Context, cuit string, _ error) (*dto.PadronResponse, error) {
	ticket, err := s.auth.Authenticate(ctx, afip.ServicePadron, s.cred)
	if err != nil {
		return nil, err
	}
	rec, err := s.padron.LookupTaxpayer(ctx, cuit, ticket, s.cred)
	if err != nil {
		return nil, err
	}
	return &dto.PadronResponse{
		CUIT:        cuit,
		Persona:     rec,
		TipoPersona: rec.Kind,
	}, nil
}

// prefixInference never fails: it only knows the person kind, labeled as a
// fallback rather than a verified record.
func (s *fiscalService) prefixInference(_ context.Context, cuit string, prev error) (*dto.PadronResponse, error) {
	resp := &dto.PadronResponse{
		CUIT:        cuit,
		TipoPersona: afip.InferPersonKind(cuit),
		Fallback:    true,
	}
	if prev != nil {
		resp.Error = prev.Error()
	}
	return resp, nil
}

// ── Último número autorizado ──────────────────────────────────────────────────

func (s *fiscalService) UltimoNumero(ctx context.Context, tipo string) (*dto.UltimoNumeroResponse, error) {
	ticket, err := s.auth.Authenticate(ctx, afip.ServiceWSFE, s.cred)
	if err != nil {
		return nil, err
	}
	ultimo, err := s.wsfe.LastAuthorized(ctx, s.cred.PuntoVenta, tipo, ticket, s.cred)
	if err != nil {
		return nil, err
	}
	return &dto.UltimoNumeroResponse{
		UltimoNumero: ultimo,
		PuntoVenta:   s.cred.PuntoVenta,
		Tipo:         tipo,
		Entorno:      string(s.cred.Environment),
	}, nil
}

// ── Autorización ──────────────────────────────────────────────────────────────

func (s *fiscalService) Autorizar(ctx context.Context, req dto.AutorizarRequest) (*dto.AutorizacionResponse, error) {
	fecha, err := time.Parse("2006-01-02", req.Fecha)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha invalida '%s'", afip.ErrInvalidRequest, req.Fecha)
	}

	authReq := afip.AuthorizationRequest{
		PuntoVenta:     s.cred.PuntoVenta,
		InvoiceType:    req.Tipo,
		Number:         req.Numero,
		IssueDate:      fecha,
		Net:            req.ImporteNeto,
		Tax:            req.ImporteIVA,
		Total:          req.ImporteTotal,
		BuyerDocType:   req.DocTipoReceptor,
		BuyerDocNumber: req.DocNroReceptor,
	}
	for _, a := range req.Alicuotas {
		authReq.Breakdown = append(authReq.Breakdown, afip.TaxEntry{
			RateID: a.Alicuota,
			Base:   a.Base,
			Amount: a.Importe,
		})
	}
	// Local invariants first: an inconsistent request never reaches AFIP.
	if err := authReq.Validate(); err != nil {
		return nil, err
	}

	ticket, err := s.auth.Authenticate(ctx, afip.ServiceWSFE, s.cred)
	if err != nil {
		return nil, err
	}
	result, err := s.wsfe.Authorize(ctx, authReq, ticket, s.cred)
	if err != nil {
		return nil, err
	}

	if !result.Authorized {
		log.Warn().
			Str("tipo", req.Tipo).
			Int64("numero", req.Numero).
			Str("motivo", result.Rejection).
			Msg("wsfe: comprobante rechazado")
		return &dto.AutorizacionResponse{Resultado: "rechazado", Motivo: result.Rejection}, nil
	}

	payload, err := afip.BuildQR(authReq, s.cred, result)
	if err != nil {
		return nil, err
	}
	encoded, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	url, err := payload.URL()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tipo", req.Tipo).
		Int64("numero", req.Numero).
		Str("cae", result.CAE).
		Msg("wsfe: CAE obtenido")

	return &dto.AutorizacionResponse{
		Resultado:      "aprobado",
		CAE:            result.CAE,
		CAEVencimiento: result.CAEExpiry.Format("2006-01-02"),
		QR:             &dto.QRResponse{Payload: payload, Encoded: encoded, URL: url},
	}, nil
}
