package afip

// signer_test.go
// The signature-validity property: an independent PKCS#7 verifier using the
// certificate's public key must validate the signature over the exact TRA
// bytes.

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/smallstep/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignLoginTicket_VerificaConClavePublica(t *testing.T) {
	cred := testCredential(t)
	tra, err := BuildLoginTicket(ServiceWSFE, time.Now()).XML()
	require.NoError(t, err)

	blob, err := SignLoginTicket(tra, cred)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	der, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err, "signature blob must be transport-safe base64")

	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)
	assert.Equal(t, tra, p7.Content, "CMS content must be the exact TRA bytes")
	require.NoError(t, p7.Verify(), "signature must verify against the embedded certificate")
}

func TestSignLoginTicket_CertificadoIlegible(t *testing.T) {
	cred := testCredential(t)
	cred.CertPEM = []byte("esto no es un PEM")

	_, err := SignLoginTicket([]byte("<tra/>"), cred)

	require.Error(t, err)
	assert.Equal(t, KindCertificateInvalid, ErrorKind(err))
}

func TestSignLoginTicket_ClaveNoCorresponde(t *testing.T) {
	cred := testCredential(t)
	otro := testCredential(t)
	cred.KeyPEM = otro.KeyPEM // key from a different certificate

	_, err := SignLoginTicket([]byte("<tra/>"), cred)

	require.Error(t, err)
	assert.Equal(t, KindCertificateInvalid, ErrorKind(err))
}

func TestCredentialValidate_SinConfigurar(t *testing.T) {
	var cred *Credential
	err := cred.Validate()
	require.Error(t, err)
	assert.Equal(t, KindConfigurationMissing, ErrorKind(err))

	err = (&Credential{CertPEM: []byte("x"), KeyPEM: []byte("y")}).Validate()
	require.Error(t, err)
	assert.Equal(t, KindConfigurationMissing, ErrorKind(err))
}
