package afip

// helpers_test.go
// Shared fixtures: a throwaway RSA credential (self-signed) and canned SOAP
// response bodies for the WSAA / padron / WSFE parsers.

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

// testCredential generates a self-signed RSA credential valid for an hour.
func testCredential(t *testing.T) *Credential {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "facturador-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	return &Credential{
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		CUIT:        "20123456789",
		Environment: EnvTest,
		PuntoVenta:  1,
	}
}

const sampleTicketXML = `<loginTicketResponse version="1.0"><header><expirationTime>2030-01-01T12:00:00-03:00</expirationTime></header><credentials><token>tok-123</token><sign>sig-456</sign></credentials></loginTicketResponse>`

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// wsaaBody wraps ticket content in the loginCms SOAP response envelope.
func wsaaBody(inner string) string {
	return `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>` +
		`<loginCmsResponse><loginCmsReturn>` + inner + `</loginCmsReturn></loginCmsResponse>` +
		`</soapenv:Body></soapenv:Envelope>`
}

const personaFisicaBody = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
	`<ns2:getPersonaResponse xmlns:ns2="http://a5.soap.ws.server.puc.sr/"><personaReturn>` +
	`<datosGenerales><apellido>PEREZ</apellido><nombre>JUAN CARLOS</nombre><tipoPersona>FISICA</tipoPersona>` +
	`<domicilioFiscal><codPostal>1414</codPostal><descripcionProvincia>CIUDAD AUTONOMA BUENOS AIRES</descripcionProvincia>` +
	`<direccion>AV SANTA FE 1234</direccion><localidad>PALERMO</localidad></domicilioFiscal></datosGenerales>` +
	`<datosRegimenGeneral><impuesto><idImpuesto>30</idImpuesto></impuesto></datosRegimenGeneral>` +
	`</personaReturn></ns2:getPersonaResponse></soap:Body></soap:Envelope>`

func ultimoAutorizadoBody(nro string) string {
	return `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<FECompUltimoAutorizadoResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECompUltimoAutorizadoResult>` +
		`<PtoVta>1</PtoVta><CbteTipo>6</CbteTipo>` + nro +
		`</FECompUltimoAutorizadoResult></FECompUltimoAutorizadoResponse></soap:Body></soap:Envelope>`
}

func caeAprobadoBody(cae, vto string) string {
	return `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECAESolicitarResult>` +
		`<FeCabResp><Resultado>A</Resultado></FeCabResp>` +
		`<FeDetResp><FECAEDetResponse><Resultado>A</Resultado><CAE>` + cae + `</CAE><CAEFchVto>` + vto + `</CAEFchVto></FECAEDetResponse></FeDetResp>` +
		`</FECAESolicitarResult></FECAESolicitarResponse></soap:Body></soap:Envelope>`
}

func caeErroresBody(code, msg string) string {
	return `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECAESolicitarResult>` +
		`<Errors><Err><Code>` + code + `</Code><Msg>` + msg + `</Msg></Err></Errors>` +
		`</FECAESolicitarResult></FECAESolicitarResponse></soap:Body></soap:Envelope>`
}
