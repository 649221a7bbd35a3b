package afip

import (
	"context"
	"encoding/xml"
	"strings"
	"time"
)

// PersonKind distinguishes physical persons from legal entities.
type PersonKind string

const (
	PersonIndividual PersonKind = "individual"
	PersonEntity     PersonKind = "entity"
)

// TaxCategory is the condition frente al IVA derived from the registry.
type TaxCategory string

const (
	CategoryResponsableInscripto TaxCategory = "responsable_inscripto"
	CategoryMonotributo          TaxCategory = "monotributo"
	CategoryExento               TaxCategory = "exento"
	CategoryConsumidorFinal      TaxCategory = "consumidor_final"
)

// FiscalAddress is the domicilio fiscal on record.
type FiscalAddress struct {
	Street     string `json:"calle"`
	Number     string `json:"numero"`
	Locality   string `json:"localidad"`
	Province   string `json:"provincia"`
	PostalCode string `json:"codigo_postal"`
}

// TaxpayerRecord is the normalized result of a registry lookup.
type TaxpayerRecord struct {
	LegalName   string        `json:"razon_social"`
	GivenName   string        `json:"nombre,omitempty"`
	FamilyName  string        `json:"apellido,omitempty"`
	Kind        PersonKind    `json:"tipo_persona"`
	TaxCategory TaxCategory   `json:"condicion_iva"`
	Address     FiscalAddress `json:"domicilio_fiscal"`
}

// PadronClient queries ws_sr_padron_a5 (constancia de inscripción).
type PadronClient struct {
	soap *soapClient
	url  string
}

func NewPadronClient(url string, timeout time.Duration) *PadronClient {
	return &PadronClient{soap: newSOAPClient(timeout), url: url}
}

// BreakerState reports the circuit state of the registry transport.
func (p *PadronClient) BreakerState() BreakerState { return p.soap.breaker.State() }

type getPersonaEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NSSoap  string   `xml:"xmlns:soapenv,attr"`
	NSA5    string   `xml:"xmlns:a5,attr"`
	Body    struct {
		GetPersona struct {
			Token            string `xml:"token"`
			Sign             string `xml:"sign"`
			CuitRepresentada string `xml:"cuitRepresentada"`
			IDPersona        string `xml:"idPersona"`
		} `xml:"a5:getPersona"`
	} `xml:"soapenv:Body"`
}

type personaReturn struct {
	ErrorConstancia struct {
		Errors []string `xml:"error"`
	} `xml:"errorConstancia"`
	DatosGenerales struct {
		TipoPersona     string `xml:"tipoPersona"` // FISICA | JURIDICA
		Nombre          string `xml:"nombre"`
		Apellido        string `xml:"apellido"`
		RazonSocial     string `xml:"razonSocial"`
		DomicilioFiscal struct {
			Direccion string `xml:"direccion"`
			Localidad string `xml:"localidad"`
			Provincia string `xml:"descripcionProvincia"`
			CodPostal string `xml:"codPostal"`
		} `xml:"domicilioFiscal"`
	} `xml:"datosGenerales"`
	RegimenGeneral struct {
		Impuestos []struct {
			ID int `xml:"idImpuesto"`
		} `xml:"impuesto"`
	} `xml:"datosRegimenGeneral"`
	Monotributo struct {
		CategoriaMonotributo struct {
			ID int `xml:"idCategoria"`
		} `xml:"categoriaMonotributo"`
	} `xml:"datosMonotributo"`
}

// LookupTaxpayer resolves a CUIT against the registry using an already-issued
// ticket for ServicePadron.
func (p *PadronClient) LookupTaxpayer(ctx context.Context, cuit string, t Ticket, cred *Credential) (*TaxpayerRecord, error) {
	const op = "padron.getPersona"

	if err := cred.Validate(); err != nil {
		return nil, err
	}

	env := getPersonaEnvelope{
		NSSoap: "http://schemas.xmlsoap.org/soap/envelope/",
		NSA5:   "http://a5.soap.ws.server.puc.sr/",
	}
	env.Body.GetPersona.Token = t.Token
	env.Body.GetPersona.Sign = t.Sign
	env.Body.GetPersona.CuitRepresentada = cred.CUIT
	env.Body.GetPersona.IDPersona = cuit

	envelope, err := xml.Marshal(env)
	if err != nil {
		return nil, wrapError(KindResponseParseFailure, op, "no se pudo armar el envelope", err)
	}

	body, err := p.soap.post(ctx, p.url, "", envelope)
	if err != nil {
		return nil, err
	}
	if fault := extractSOAPFault(op, body); fault != nil {
		return nil, fault
	}

	var resp struct {
		Persona *personaReturn `xml:"Body>getPersonaResponse>personaReturn"`
	}
	if err := xml.Unmarshal(body, &resp); err != nil || resp.Persona == nil {
		return nil, wrapError(KindResponseParseFailure, op, "respuesta del padron ilegible", err)
	}
	persona := resp.Persona

	if len(persona.ErrorConstancia.Errors) > 0 {
		return nil, newError(KindAuthorityFault, op, strings.Join(persona.ErrorConstancia.Errors, "; "))
	}
	if persona.DatosGenerales.TipoPersona == "" {
		return nil, newError(KindResponseParseFailure, op, "personaReturn sin datosGenerales")
	}

	rec := &TaxpayerRecord{
		TaxCategory: deriveTaxCategory(persona),
	}
	dg := persona.DatosGenerales
	if dg.TipoPersona == "JURIDICA" {
		rec.Kind = PersonEntity
		rec.LegalName = dg.RazonSocial
	} else {
		rec.Kind = PersonIndividual
		rec.GivenName = dg.Nombre
		rec.FamilyName = dg.Apellido
		rec.LegalName = strings.TrimSpace(dg.Apellido + " " + dg.Nombre)
	}
	street, number := splitAddress(dg.DomicilioFiscal.Direccion)
	rec.Address = FiscalAddress{
		Street:     street,
		Number:     number,
		Locality:   dg.DomicilioFiscal.Localidad,
		Province:   dg.DomicilioFiscal.Provincia,
		PostalCode: dg.DomicilioFiscal.CodPostal,
	}
	return rec, nil
}

// Registry impuesto ids that decide the IVA condition.
const (
	impuestoIVA         = 30 // régimen general, responsable inscripto
	impuestoMonotributo = 20
	impuestoIVAExento   = 32
)

// deriveTaxCategory scans the active registrations in fixed priority order:
// régimen general outranks monotributo, which outranks exemption. No match
// means consumidor final.
func deriveTaxCategory(p *personaReturn) TaxCategory {
	has := func(id int) bool {
		for _, imp := range p.RegimenGeneral.Impuestos {
			if imp.ID == id {
				return true
			}
		}
		return false
	}
	switch {
	case has(impuestoIVA):
		return CategoryResponsableInscripto
	case has(impuestoMonotributo) || p.Monotributo.CategoriaMonotributo.ID != 0:
		return CategoryMonotributo
	case has(impuestoIVAExento):
		return CategoryExento
	default:
		return CategoryConsumidorFinal
	}
}

// splitAddress separates "CALLE FALSA 123" into street and number. When the
// registry gives no trailing number the convention is "S/N".
func splitAddress(direccion string) (street, number string) {
	direccion = strings.TrimSpace(direccion)
	if direccion == "" {
		return "", "S/N"
	}
	i := strings.LastIndex(direccion, " ")
	if i < 0 {
		return direccion, "S/N"
	}
	last := direccion[i+1:]
	for _, r := range last {
		if r < '0' || r > '9' {
			return direccion, "S/N"
		}
	}
	return strings.TrimSpace(direccion[:i]), last
}

// entityPrefixes are the CUIT prefixes assigned to legal entities.
var entityPrefixes = map[string]bool{"30": true, "33": true, "34": true}

// InferPersonKind guesses the person kind from the CUIT's two-digit prefix.
// It is a fallback for when the registry cannot be reached and must be
// presented as such, never as a verified record.
func InferPersonKind(cuit string) PersonKind {
	if len(cuit) >= 2 && entityPrefixes[cuit[:2]] {
		return PersonEntity
	}
	return PersonIndividual
}
