package afip

// Fixed AFIP code tables. The numeric values are part of the wire protocol
// (WSFEv1 FEParamGetTiposCbte / FEParamGetTiposIva) and must not change.

// ── Tipos de comprobante ──────────────────────────────────────────────────────

var invoiceTypeCodes = map[string]int{
	"factura_a":      1,
	"nota_debito_a":  2,
	"nota_credito_a": 3,
	"factura_b":      6,
	"nota_debito_b":  7,
	"nota_credito_b": 8,
	"factura_c":      11,
	"nota_debito_c":  12,
	"nota_credito_c": 13,
}

var invoiceTypeNames = reverse(invoiceTypeCodes)

// InvoiceTypeCode maps an internal invoice type to its AFIP numeric code.
func InvoiceTypeCode(name string) (int, bool) {
	code, ok := invoiceTypeCodes[name]
	return code, ok
}

// InvoiceTypeName is the reverse lookup of InvoiceTypeCode.
func InvoiceTypeName(code int) (string, bool) {
	name, ok := invoiceTypeNames[code]
	return name, ok
}

// ── Alícuotas de IVA ──────────────────────────────────────────────────────────

var taxRateCodes = map[string]int{
	"iva_0":    3,
	"iva_2_5":  9,
	"iva_5":    8,
	"iva_10_5": 4,
	"iva_21":   5,
	"iva_27":   6,
}

var taxRateNames = reverse(taxRateCodes)

// TaxRateCode maps an internal IVA rate identifier to its AFIP numeric code.
func TaxRateCode(name string) (int, bool) {
	code, ok := taxRateCodes[name]
	return code, ok
}

// TaxRateName is the reverse lookup of TaxRateCode.
func TaxRateName(code int) (string, bool) {
	name, ok := taxRateNames[code]
	return name, ok
}

// ── Tipos de documento ────────────────────────────────────────────────────────

const (
	DocTypeCUIT            = 80
	DocTypeCUIL            = 86
	DocTypeDNI             = 96
	DocTypeConsumidorFinal = 99
)

func reverse(m map[string]int) map[int]string {
	r := make(map[int]string, len(m))
	for k, v := range m {
		r[v] = k
	}
	return r
}
