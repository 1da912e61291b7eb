package email

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provably/zkattest-go/pkg/circuit"
)

func TestComposeLocateRoundTrip(t *testing.T) {
	msg, err := Compose("alice@example.com")
	require.NoError(t, err)

	require.Len(t, msg.Header, circuit.HeaderCap)
	require.Len(t, msg.Body, circuit.BodyCap)

	loc, err := Locate(msg.Header, msg.HeaderLen)
	require.NoError(t, err)
	assert.Equal(t, msg.Loc, *loc)

	addr := msg.Header[loc.ToAddress.Start : loc.ToAddress.Start+loc.ToAddress.Length]
	assert.Equal(t, "alice@example.com", string(addr))

	// Padding past the logical length stays zero.
	for i := msg.HeaderLen; i < circuit.HeaderCap; i++ {
		assert.Zero(t, msg.Header[i])
	}
}

func TestComposeRejectsBadAddresses(t *testing.T) {
	_, err := Compose("no-domain")
	assert.Error(t, err)

	_, err = Compose("crlf@example.com\r\n")
	assert.Error(t, err)

	long := make([]byte, circuit.AddressCap+1)
	for i := range long {
		long[i] = 'a'
	}
	long[1] = '@'
	_, err = Compose(string(long))
	assert.Error(t, err)
}

func TestLocateRejectsMalformedHeaders(t *testing.T) {
	msg, err := Compose("alice@example.com")
	require.NoError(t, err)

	// Break the from field name.
	broken := make([]byte, len(msg.Header))
	copy(broken, msg.Header)
	broken[0] = 'x'
	_, err = Locate(broken, msg.HeaderLen)
	assert.Error(t, err)

	// Truncate inside the signature field.
	_, err = Locate(msg.Header, msg.Loc.DKIMField.Start+4)
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	msg, err := Compose("alice@example.com")
	require.NoError(t, err)

	sig, err := Sign(key, msg.Header)
	require.NoError(t, err)
	require.NoError(t, Verify(&key.PublicKey, msg.Header, sig))

	msg.Header[0] ^= 0x01
	assert.Error(t, Verify(&key.PublicKey, msg.Header, sig))
}

func TestDomainOf(t *testing.T) {
	d, err := DomainOf("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", d)

	// First '@' wins for addresses with a quoted local part.
	d, err = DomainOf("a@b@c")
	require.NoError(t, err)
	assert.Equal(t, "b@c", d)

	_, err = DomainOf("nodomain")
	assert.Error(t, err)
	_, err = DomainOf("trailing@")
	assert.Error(t, err)
}

func TestPadDomain(t *testing.T) {
	out, err := PadDomain("example.com")
	require.NoError(t, err)
	require.Len(t, out, circuit.DomainCap)
	assert.Equal(t, "example.com", string(out[:11]))
	for _, b := range out[11:] {
		assert.Zero(t, b)
	}

	long := make([]byte, circuit.DomainCap+1)
	_, err = PadDomain(string(long))
	assert.Error(t, err)
}

func TestPaddedBodyDigestStable(t *testing.T) {
	assert.Equal(t, PaddedBody(), PaddedBody())
	assert.Len(t, PaddedBody(), circuit.BodyCap)
	assert.Equal(t, circuit.CanonicalPhrase, string(PaddedBody()[:len(circuit.CanonicalPhrase)]))
}
