package afip

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strings"
)

// Environment selects between AFIP's homologación and production hosts.
type Environment string

const (
	EnvTest       Environment = "test"
	EnvProduction Environment = "production"
)

// ParseEnvironment accepts "test" / "production" (case-insensitive).
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "test", "homo", "homologacion":
		return EnvTest, nil
	case "production", "prod":
		return EnvProduction, nil
	}
	return "", newError(KindConfigurationMissing, "afip.environment",
		"entorno desconocido '"+s+"' (use 'test' o 'production')")
}

// Credential holds the X.509 certificate and private key registered with AFIP
// plus the issuing CUIT and punto de venta. It is supplied by the caller, read
// only, and never logged.
type Credential struct {
	CertPEM     []byte
	KeyPEM      []byte
	CUIT        string
	Environment Environment
	PuntoVenta  int
}

// LoadCredential reads the PEM pair from disk. Missing paths or unreadable
// files are a ConfigurationMissing error: the operator has to fix the deploy,
// not the request.
func LoadCredential(certPath, keyPath, cuit string, env Environment, puntoVenta int) (*Credential, error) {
	const op = "afip.credential"
	if certPath == "" || keyPath == "" {
		return nil, newError(KindConfigurationMissing, op,
			"certificado o clave privada sin configurar (AFIP_CERT_PATH / AFIP_KEY_PATH)")
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, wrapError(KindConfigurationMissing, op, "no se pudo leer el certificado", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, wrapError(KindConfigurationMissing, op, "no se pudo leer la clave privada", err)
	}
	cred := &Credential{
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
		CUIT:        cuit,
		Environment: env,
		PuntoVenta:  puntoVenta,
	}
	// Fail at boot, not on the first invoice.
	if _, _, err := cred.keyPair(); err != nil {
		return nil, err
	}
	return cred, nil
}

// Validate checks that the credential is usable before any network attempt.
func (c *Credential) Validate() error {
	const op = "afip.credential"
	if c == nil || len(c.CertPEM) == 0 || len(c.KeyPEM) == 0 {
		return newError(KindConfigurationMissing, op, "credencial AFIP no configurada")
	}
	if c.CUIT == "" {
		return newError(KindConfigurationMissing, op, "CUIT emisor no configurado")
	}
	return nil
}

// keyPair parses the PEM pair and verifies the key matches the certificate.
func (c *Credential) keyPair() (*x509.Certificate, crypto.Signer, error) {
	const op = "afip.credential"

	block, _ := pem.Decode(c.CertPEM)
	if block == nil || !strings.Contains(block.Type, "CERTIFICATE") {
		return nil, nil, newError(KindCertificateInvalid, op, "el certificado no es un PEM valido")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, wrapError(KindCertificateInvalid, op, "certificado X.509 ilegible", err)
	}

	key, err := parsePrivateKey(c.KeyPEM)
	if err != nil {
		return nil, nil, err
	}

	pub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(key.Public()) {
		return nil, nil, newError(KindCertificateInvalid, op,
			"la clave privada no corresponde al certificado")
	}
	return cert, key, nil
}

// parsePrivateKey tries PKCS#8, PKCS#1 and SEC1 encodings in that order.
func parsePrivateKey(keyPEM []byte) (crypto.Signer, error) {
	const op = "afip.credential"
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, newError(KindCertificateInvalid, op, "la clave privada no es un PEM valido")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if signer, ok := k.(crypto.Signer); ok {
			return signer, nil
		}
		return nil, newError(KindCertificateInvalid, op, "tipo de clave privada no soportado")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	return nil, newError(KindCertificateInvalid, op, "clave privada ilegible (se espera PKCS#8, PKCS#1 o SEC1)")
}
