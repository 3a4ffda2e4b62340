package wallet

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSigned(t *testing.T, cn, unit string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn, OrganizationalUnit: []string{unit}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func testSigner(t *testing.T) *Signer {
	t.Helper()
	cert, key := selfSigned(t, "Pass Type ID: pass.com.tablero.tarjeta", "TEAM123456")
	wwdr, _ := selfSigned(t, "Apple Worldwide Developer Relations", "G4")
	signer, err := NewSigner(cert, key, wwdr)
	require.NoError(t, err)
	return signer
}

func testTemplateFS() fstest.MapFS {
	return fstest.MapFS{
		"pass.json":             {Data: []byte(`{"formatVersion":1,"description":"Tarjeta de puntos","storeCard":{"headerFields":[{"key":"programa","label":"Programa","value":"Puntos"}]}}`)},
		"icon.png":              {Data: []byte("icon-bytes")},
		"logo.png":              {Data: []byte("logo-bytes")},
		"es.lproj/pass.strings": {Data: []byte(`"Puntos" = "Puntos";`)},
		".DS_Store":             {Data: []byte("junk")},
	}
}

func testTemplate(t *testing.T) *Template {
	t.Helper()
	tmpl, err := LoadTemplate(testTemplateFS())
	require.NoError(t, err)
	return tmpl
}

var demoCard = Card{ID: "0001", Name: "CLIENTE DEMO", Points: 120, Branch: "centro"}
