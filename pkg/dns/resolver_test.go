package dns

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dkimRecordFor(t *testing.T, pub *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return fmt.Sprintf("v=DKIM1; k=rsa; p=%s", base64.StdEncoding.EncodeToString(der))
}

func TestParseDKIMRecord(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := ParseDKIMRecord(dkimRecordFor(t, &key.PublicKey))
	require.NoError(t, err)
	assert.Zero(t, pub.N.Cmp(key.PublicKey.N))
	assert.Equal(t, key.PublicKey.E, pub.E)
}

func TestParseDKIMRecordWithoutKeyType(t *testing.T) {
	// k=rsa is the default and may be omitted.
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	record := fmt.Sprintf("v=DKIM1; p=%s", base64.StdEncoding.EncodeToString(der))
	_, err = ParseDKIMRecord(record)
	assert.NoError(t, err)
}

func TestParseDKIMRecordErrors(t *testing.T) {
	_, err := ParseDKIMRecord("v=DKIM1; k=ed25519; p=AAAA")
	assert.Error(t, err, "non-rsa key type")

	_, err = ParseDKIMRecord("v=DKIM1; k=rsa")
	assert.Error(t, err, "missing p= tag")

	_, err = ParseDKIMRecord("v=DKIM1; k=rsa; p=!!!not-base64!!!")
	assert.Error(t, err, "invalid base64")

	_, err = ParseDKIMRecord("v=DKIM1; k=rsa; p=AAAA")
	assert.Error(t, err, "invalid DER")
}
