package afip

import (
	"encoding/base64"

	"github.com/smallstep/pkcs7"
)

// SignLoginTicket wraps the TRA bytes in a CMS/PKCS#7 SignedData structure —
// single signer, SHA-256 digest, signed attributes for content-type,
// message-digest and signing-time — and returns the DER output base64-encoded
// for the loginCms call. WSAA requires the TRA embedded as SignedData content,
// so the CMS is emitted attached; the signature still covers the exact TRA
// bytes.
func SignLoginTicket(tra []byte, cred *Credential) (string, error) {
	const op = "afip.sign"

	cert, key, err := cred.keyPair()
	if err != nil {
		return "", err
	}

	sd, err := pkcs7.NewSignedData(tra)
	if err != nil {
		return "", wrapError(KindSigningFailure, op, "no se pudo iniciar la estructura CMS", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}); err != nil {
		return "", wrapError(KindSigningFailure, op, "no se pudo firmar el TRA", err)
	}

	der, err := sd.Finish()
	if err != nil {
		return "", wrapError(KindSigningFailure, op, "no se pudo serializar la firma CMS", err)
	}
	if len(der) == 0 {
		return "", newError(KindSigningFailure, op, "la firma CMS resulto vacia")
	}
	return base64.StdEncoding.EncodeToString(der), nil
}
