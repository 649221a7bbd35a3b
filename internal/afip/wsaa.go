package afip

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// defaultTicketTTL is applied when the login response does not carry an
// expiration. WSAA tickets last 12 hours; the margin keeps us from presenting
// a ticket that dies mid-request.
const defaultTicketTTL = 11*time.Hour + 30*time.Minute

// Ticket is the short-lived {token, sign} pair WSAA issues per service.
type Ticket struct {
	Token      string
	Sign       string
	Service    string
	ObtainedAt time.Time
	ValidUntil time.Time
}

// AuthClient exchanges signed TRAs for access tickets and caches them per
// service. AFIP penalizes redundant logins, so a valid cached ticket is always
// reused and concurrent callers for the same service share a single in-flight
// login.
type AuthClient struct {
	soap     *soapClient
	loginURL string
	clock    func() time.Time

	mu    sync.Mutex
	cache map[string]Ticket
	group singleflight.Group
}

func NewAuthClient(loginURL string, timeout time.Duration) *AuthClient {
	return &AuthClient{
		soap:     newSOAPClient(timeout),
		loginURL: loginURL,
		clock:    time.Now,
		cache:    make(map[string]Ticket),
	}
}

// BreakerState reports the circuit state of the login transport.
func (a *AuthClient) BreakerState() BreakerState { return a.soap.breaker.State() }

// Authenticate returns a ticket valid for service, hitting the network only
// when no cached ticket satisfies now < ValidUntil.
func (a *AuthClient) Authenticate(ctx context.Context, service string, cred *Credential) (Ticket, error) {
	if err := cred.Validate(); err != nil {
		return Ticket{}, err
	}
	if t, ok := a.cached(service); ok {
		return t, nil
	}

	v, err, _ := a.group.Do(service, func() (interface{}, error) {
		// Another caller may have refreshed the cache while we waited.
		if t, ok := a.cached(service); ok {
			return t, nil
		}
		return a.login(ctx, service, cred)
	})
	if err != nil {
		return Ticket{}, err
	}
	return v.(Ticket), nil
}

func (a *AuthClient) cached(service string) (Ticket, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.cache[service]
	if !ok || !a.clock().Before(t.ValidUntil) {
		return Ticket{}, false
	}
	return t, true
}

type loginCmsEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NSSoap  string   `xml:"xmlns:soapenv,attr"`
	NSWSAA  string   `xml:"xmlns:wsaa,attr"`
	Body    struct {
		LoginCms struct {
			In0 string `xml:"wsaa:in0"`
		} `xml:"wsaa:loginCms"`
	} `xml:"soapenv:Body"`
}

func (a *AuthClient) login(ctx context.Context, service string, cred *Credential) (Ticket, error) {
	const op = "wsaa.login"

	tra := BuildLoginTicket(service, a.clock())
	traXML, err := tra.XML()
	if err != nil {
		return Ticket{}, err
	}
	cms, err := SignLoginTicket(traXML, cred)
	if err != nil {
		return Ticket{}, err
	}

	env := loginCmsEnvelope{
		NSSoap: "http://schemas.xmlsoap.org/soap/envelope/",
		NSWSAA: "http://wsaa.view.sua.dvadac.desein.afip.gov",
	}
	env.Body.LoginCms.In0 = cms
	envelope, err := xml.Marshal(env)
	if err != nil {
		return Ticket{}, wrapError(KindResponseParseFailure, op, "no se pudo armar el envelope", err)
	}

	body, err := a.soap.post(ctx, a.loginURL, "", envelope)
	if err != nil {
		return Ticket{}, err
	}
	if fault := extractSOAPFault(op, body); fault != nil {
		return Ticket{}, fault
	}

	ltr, err := parseLoginResponse(body)
	if err != nil {
		return Ticket{}, err
	}

	now := a.clock()
	t := Ticket{
		Token:      ltr.Token,
		Sign:       ltr.Sign,
		Service:    service,
		ObtainedAt: now,
		ValidUntil: now.Add(defaultTicketTTL),
	}
	if exp, perr := time.Parse(time.RFC3339, ltr.Expiration); perr == nil {
		t.ValidUntil = exp
	}

	a.mu.Lock()
	a.cache[service] = t
	a.mu.Unlock()

	log.Info().
		Str("service", service).
		Time("valid_until", t.ValidUntil).
		Msg("wsaa: ticket de acceso obtenido")
	return t, nil
}

// loginTicketResponse is the document WSAA returns inside loginCmsReturn.
type loginTicketResponse struct {
	Expiration string `xml:"header>expirationTime"`
	Token      string `xml:"credentials>token"`
	Sign       string `xml:"credentials>sign"`
}

// parseLoginResponse extracts the loginTicketResponse from the SOAP body.
// The ticket may arrive as an inline XML subtree, as CDATA-wrapped text or as
// an XML-escaped string inside loginCmsReturn; exactly those three shapes are
// accepted, anything else is a ResponseParseFailure.
func parseLoginResponse(body []byte) (*loginTicketResponse, error) {
	const op = "wsaa.login"

	d := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapError(KindResponseParseFailure, op, "respuesta de WSAA ilegible", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "loginTicketResponse":
			var ltr loginTicketResponse
			if err := d.DecodeElement(&ltr, &se); err != nil {
				return nil, wrapError(KindResponseParseFailure, op, "loginTicketResponse ilegible", err)
			}
			return checkLoginTicket(&ltr)
		case "loginCmsReturn":
			ltr, err := decodeCmsReturn(d)
			if err != nil || ltr != nil {
				return ltr, err
			}
			// Empty wrapper: keep scanning, the document may carry the
			// ticket elsewhere in the body.
		}
	}
	return nil, newError(KindResponseParseFailure, op,
		"la respuesta de WSAA no contiene un loginTicketResponse en ninguna forma reconocida")
}

// decodeCmsReturn consumes a loginCmsReturn element. Character data (both
// CDATA and escaped text arrive that way, already unescaped by the decoder)
// is re-parsed as an embedded document; an inline loginTicketResponse child
// is decoded directly.
func decodeCmsReturn(d *xml.Decoder) (*loginTicketResponse, error) {
	const op = "wsaa.login"

	var text bytes.Buffer
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, wrapError(KindResponseParseFailure, op, "loginCmsReturn truncado", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			if t.Name.Local == "loginTicketResponse" {
				var ltr loginTicketResponse
				if err := d.DecodeElement(&ltr, &t); err != nil {
					return nil, wrapError(KindResponseParseFailure, op, "loginTicketResponse ilegible", err)
				}
				return checkLoginTicket(&ltr)
			}
			if err := d.Skip(); err != nil {
				return nil, wrapError(KindResponseParseFailure, op, "loginCmsReturn ilegible", err)
			}
		case xml.EndElement:
			inner := strings.TrimSpace(text.String())
			if strings.Contains(inner, "<loginTicketResponse") {
				return parseLoginResponse([]byte(inner))
			}
			return nil, nil
		}
	}
}

func checkLoginTicket(ltr *loginTicketResponse) (*loginTicketResponse, error) {
	if ltr.Token == "" || ltr.Sign == "" {
		return nil, newError(KindResponseParseFailure, "wsaa.login",
			"loginTicketResponse sin token o sign")
	}
	return ltr, nil
}
