package afip

// wsfe_test.go
// Sequence queries, local validation short-circuit, CAE approval parsing and
// duplicate-number rejection.

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAuthRequest() AuthorizationRequest {
	return AuthorizationRequest{
		PuntoVenta:  1,
		InvoiceType: "factura_b",
		Number:      145,
		IssueDate:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Net:         decimal.NewFromFloat(1000.00),
		Tax:         decimal.NewFromFloat(210.00),
		Total:       decimal.NewFromFloat(1210.00),
		Breakdown: []TaxEntry{
			{RateID: "iva_21", Base: decimal.NewFromFloat(1000.00), Amount: decimal.NewFromFloat(210.00)},
		},
	}
}

func TestAuthorizationRequestValidate(t *testing.T) {
	require.NoError(t, validAuthRequest().Validate())

	mal := validAuthRequest()
	mal.Total = decimal.NewFromFloat(1300.00)
	err := mal.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// One-cent rounding drift is tolerated.
	casi := validAuthRequest()
	casi.Total = decimal.NewFromFloat(1210.01)
	require.NoError(t, casi.Validate())
}

func TestLastAuthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FECompUltimoAutorizado", r.Header.Get("SOAPAction"))
		_, _ = w.Write([]byte(ultimoAutorizadoBody("<CbteNro>145</CbteNro>")))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	nro, err := c.LastAuthorized(context.Background(), 1, "factura_b", Ticket{Token: "t", Sign: "s"}, testCredential(t))

	require.NoError(t, err)
	assert.Equal(t, int64(145), nro)
}

func TestLastAuthorized_TipoDesconocido(t *testing.T) {
	c := NewWSFEClient("http://127.0.0.1:1", time.Second)
	_, err := c.LastAuthorized(context.Background(), 1, "factura_z", Ticket{}, testCredential(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestLastAuthorized_ErrorDeAFIP(t *testing.T) {
	body := ultimoAutorizadoBody(`<Errors><Err><Code>600</Code><Msg>Token invalido</Msg></Err></Errors>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	_, err := c.LastAuthorized(context.Background(), 1, "factura_b", Ticket{}, testCredential(t))

	require.Error(t, err)
	assert.Equal(t, KindAuthorityFault, ErrorKind(err))
	assert.Contains(t, err.Error(), "Token invalido")
}

func TestLastAuthorized_SinCampo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ultimoAutorizadoBody("")))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	_, err := c.LastAuthorized(context.Background(), 1, "factura_b", Ticket{}, testCredential(t))

	require.Error(t, err)
	assert.Equal(t, KindResponseParseFailure, ErrorKind(err))
}

func TestAuthorize_ValidacionLocalAntesDeRed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	req := validAuthRequest()
	req.Total = decimal.NewFromFloat(1300.00)

	_, err := c.Authorize(context.Background(), req, Ticket{}, testCredential(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "an inconsistent request must never reach the authority")
}

func TestAuthorize_Aprobado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FECAESolicitar", r.Header.Get("SOAPAction"))
		_, _ = w.Write([]byte(caeAprobadoBody("70123456789012", "20250125")))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	res, err := c.Authorize(context.Background(), validAuthRequest(), Ticket{Token: "t", Sign: "s"}, testCredential(t))

	require.NoError(t, err)
	assert.True(t, res.Authorized)
	assert.Equal(t, "70123456789012", res.CAE)
	assert.Equal(t, time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC), res.CAEExpiry)
	assert.Empty(t, res.Rejection)
}

func TestAuthorize_DuplicadoRechazado(t *testing.T) {
	// First submission approved, second rejected as already authorized —
	// never a second CAE for the same number.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(caeAprobadoBody("70123456789012", "20250125")))
			return
		}
		_, _ = w.Write([]byte(caeErroresBody("10016", "El numero de comprobante ya se encuentra autorizado")))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	cred := testCredential(t)

	primero, err := c.Authorize(context.Background(), validAuthRequest(), Ticket{}, cred)
	require.NoError(t, err)
	require.True(t, primero.Authorized)

	segundo, err := c.Authorize(context.Background(), validAuthRequest(), Ticket{}, cred)
	require.NoError(t, err)
	assert.False(t, segundo.Authorized)
	assert.Empty(t, segundo.CAE)
	assert.Contains(t, segundo.Rejection, "ya se encuentra autorizado")
}

func TestAuthorize_AlicuotaDesconocida(t *testing.T) {
	c := NewWSFEClient("http://127.0.0.1:1", time.Second)
	req := validAuthRequest()
	req.Breakdown[0].RateID = "iva_50"

	_, err := c.Authorize(context.Background(), req, Ticket{}, testCredential(t))

	// Unmapped rate is a local configuration error, not an authority fault.
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.NotEqual(t, KindAuthorityFault, ErrorKind(err))
}

func TestAuthorize_RespuestaVacia(t *testing.T) {
	body := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<FECAESolicitarResponse><FECAESolicitarResult></FECAESolicitarResult></FECAESolicitarResponse>` +
		`</soap:Body></soap:Envelope>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	_, err := c.Authorize(context.Background(), validAuthRequest(), Ticket{}, testCredential(t))

	require.Error(t, err)
	assert.Equal(t, KindResponseParseFailure, ErrorKind(err))
}

func TestAuthorize_FaultSOAP(t *testing.T) {
	fault := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<soap:Fault><faultcode>soap:Server</faultcode><faultstring>Ticket expirado</faultstring></soap:Fault>` +
		`</soap:Body></soap:Envelope>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fault))
	}))
	defer srv.Close()

	c := NewWSFEClient(srv.URL, 5*time.Second)
	_, err := c.Authorize(context.Background(), validAuthRequest(), Ticket{}, testCredential(t))

	require.Error(t, err)
	assert.Equal(t, KindAuthorityFault, ErrorKind(err))
	assert.Contains(t, err.Error(), "Ticket expirado")

	var afipErr *Error
	require.True(t, errors.As(err, &afipErr))
}
