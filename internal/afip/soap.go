package afip

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// soapClient is the shared HTTPS transport for the three service families.
// It owns the timeout, the circuit breaker and the retry policy: exactly one
// silent retry on transport errors, never on a response we actually received —
// resubmitting a request the authority already processed can register as a
// duplicate.
type soapClient struct {
	http    *http.Client
	breaker *Breaker
}

func newSOAPClient(timeout time.Duration) *soapClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &soapClient{
		http:    &http.Client{Timeout: timeout},
		breaker: NewBreaker(0, 0, 0),
	}
}

// post sends a SOAP envelope and returns the raw response body. HTTP 500 is
// returned as a body too: SOAP faults travel with that status and must reach
// the per-service parsers.
func (c *soapClient) post(ctx context.Context, url, soapAction string, envelope []byte) ([]byte, error) {
	const op = "afip.soap"

	if !c.breaker.Allow() {
		return nil, newError(KindNetworkFailure, op,
			"circuito abierto: el servicio de AFIP viene fallando, reintente en unos segundos")
	}

	var body []byte
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		body, lastErr = c.postOnce(ctx, url, soapAction, envelope)
		if lastErr == nil {
			c.breaker.RecordSuccess()
			return body, nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempt == 0 {
			log.Warn().Str("url", url).Err(lastErr).Msg("soap: fallo de transporte, reintentando una vez")
		}
	}
	c.breaker.RecordFailure()
	return nil, lastErr
}

func (c *soapClient) postOnce(ctx context.Context, url, soapAction string, envelope []byte) ([]byte, error) {
	const op = "afip.soap"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return nil, wrapError(KindNetworkFailure, op, "no se pudo armar la peticion", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	if soapAction != "" {
		req.Header.Set("SOAPAction", soapAction)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(KindNetworkFailure, op, "fallo de red contra "+url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Partial bodies are never interpreted as success.
		return nil, wrapError(KindNetworkFailure, op, "respuesta truncada", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusInternalServerError:
		return body, nil
	default:
		return nil, newError(KindNetworkFailure, op,
			"el servicio respondio HTTP "+resp.Status)
	}
}

// soapFault mirrors the SOAP 1.1 fault element.
type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

// extractSOAPFault returns an AuthorityFault when the body carries an explicit
// SOAP fault, nil otherwise. The fault text is preserved verbatim.
func extractSOAPFault(op string, body []byte) *Error {
	var env struct {
		Fault *soapFault `xml:"Body>Fault"`
	}
	if err := xml.Unmarshal(body, &env); err != nil || env.Fault == nil {
		return nil
	}
	msg := env.Fault.String
	if msg == "" {
		msg = env.Fault.Code
	}
	return newError(KindAuthorityFault, op, msg)
}
