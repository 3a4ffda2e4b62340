package wallet

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"go.mozilla.org/pkcs7"
	"golang.org/x/crypto/pkcs12"
)

// Signer produces the detached PKCS#7 signature over a pass manifest.
type Signer struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
	wwdr *x509.Certificate
}

// NewSigner wraps already-parsed signing material.
func NewSigner(cert *x509.Certificate, key crypto.PrivateKey, wwdr *x509.Certificate) (*Signer, error) {
	if cert == nil || key == nil {
		return nil, errors.New("wallet: signing certificate and key are required")
	}
	if wwdr == nil {
		return nil, errors.New("wallet: intermediate certificate is required")
	}
	return &Signer{cert: cert, key: key, wwdr: wwdr}, nil
}

// LoadSigner reads the pass certificate from a .p12 bundle and the Apple WWDR
// intermediate from a PEM or DER file.
func LoadSigner(p12Path, password, wwdrPath string) (*Signer, error) {
	bundle, err := os.ReadFile(p12Path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read certificate bundle: %w", err)
	}
	key, cert, err := pkcs12.Decode(bundle, password)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode certificate bundle: %w", err)
	}
	raw, err := os.ReadFile(wwdrPath)
	if err != nil {
		return nil, fmt.Errorf("wallet: read intermediate certificate: %w", err)
	}
	wwdr, err := ParseCertificate(raw)
	if err != nil {
		return nil, err
	}
	return NewSigner(cert, key, wwdr)
}

// ParseCertificate accepts a PEM block or raw DER.
func ParseCertificate(raw []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(raw); block != nil {
		raw = block.Bytes
	}
	cert, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse certificate: %w", err)
	}
	return cert, nil
}

// Sign returns the DER-encoded detached signature of manifest.
func (s *Signer) Sign(manifest []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, fmt.Errorf("wallet: init signature: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("wallet: add signer: %w", err)
	}
	sd.AddCertificate(s.wwdr)
	sd.Detach()
	der, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("wallet: finish signature: %w", err)
	}
	return der, nil
}

// TeamIdentifier returns the organisational unit of the pass certificate,
// which Apple sets to the developer team id.
func (s *Signer) TeamIdentifier() string {
	if len(s.cert.Subject.OrganizationalUnit) > 0 {
		return s.cert.Subject.OrganizationalUnit[0]
	}
	return ""
}
