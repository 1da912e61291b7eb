// Package email composes and parses the fixed wire layout the domain
// attestation circuits consume: zero-padded header and body buffers plus the
// (start, length) sequences locating the header fields inside them.
package email

import (
	"bytes"
	gocrypto "crypto"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/provably/zkattest-go/pkg/circuit"
)

// dkimPrefix precedes the raw 32-byte body digest inside the signature field.
const dkimPrefix = "dkim-signature:v=1;a=rsa-sha256;bh="

// dkimSuffix closes the signature field after the digest.
const dkimSuffix = ";b=;"

// Sequence is the host-side mirror of the circuit Sequence witness.
type Sequence struct {
	Start  int
	Length int
}

// Located carries every field sequence a domain attestation witness needs.
type Located struct {
	DKIMField     Sequence
	BodyHashIndex int
	FromField     Sequence
	FromAddress   Sequence
	ToField       Sequence
	ToAddress     Sequence
}

// Message is a protocol mail in wire form: buffers at full capacity with
// zero padding past the logical lengths, plus the located sequences.
type Message struct {
	Header    []byte // len == circuit.HeaderCap
	HeaderLen int
	Body      []byte // len == circuit.BodyCap
	Loc       Located
}

// PaddedBody returns the canonical phrase zero-padded to the body capacity.
func PaddedBody() []byte {
	body := make([]byte, circuit.BodyCap)
	copy(body, circuit.CanonicalPhrase)
	return body
}

// Compose builds a self-addressed protocol mail for addr, with the body-hash
// slot already holding the digest of the canonical body.
func Compose(addr string) (*Message, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}

	body := PaddedBody()
	bodyHash := sha256.Sum256(body)

	var buf bytes.Buffer
	fromField := Sequence{Start: buf.Len(), Length: len("from:") + len(addr)}
	fromAddr := Sequence{Start: buf.Len() + len("from:"), Length: len(addr)}
	buf.WriteString("from:")
	buf.WriteString(addr)
	buf.WriteString("\r\n")

	toField := Sequence{Start: buf.Len(), Length: len("to:") + len(addr)}
	toAddr := Sequence{Start: buf.Len() + len("to:"), Length: len(addr)}
	buf.WriteString("to:")
	buf.WriteString(addr)
	buf.WriteString("\r\n")

	dkimField := Sequence{Start: buf.Len(), Length: len(dkimPrefix) + len(bodyHash) + len(dkimSuffix)}
	buf.WriteString(dkimPrefix)
	buf.Write(bodyHash[:])
	buf.WriteString(dkimSuffix)
	buf.WriteString("\r\n")

	if buf.Len() > circuit.HeaderCap {
		return nil, fmt.Errorf("header overflows capacity: %d > %d", buf.Len(), circuit.HeaderCap)
	}

	header := make([]byte, circuit.HeaderCap)
	copy(header, buf.Bytes())

	return &Message{
		Header:    header,
		HeaderLen: buf.Len(),
		Body:      body,
		Loc: Located{
			DKIMField:     dkimField,
			BodyHashIndex: len(dkimPrefix),
			FromField:     fromField,
			FromAddress:   fromAddr,
			ToField:       toField,
			ToAddress:     toAddr,
		},
	}, nil
}

// Locate re-derives the field sequences from a compliant header buffer. The
// from and to lines are scanned textually; the signature field is parsed
// structurally because the embedded digest is raw bytes.
func Locate(header []byte, headerLen int) (*Located, error) {
	if headerLen > len(header) {
		return nil, fmt.Errorf("header length %d exceeds buffer", headerLen)
	}
	loc := &Located{}

	pos := 0
	fromLine, err := readLine(header[:headerLen], pos)
	if err != nil {
		return nil, fmt.Errorf("from line: %w", err)
	}
	if !bytes.HasPrefix(fromLine, []byte("from:")) {
		return nil, fmt.Errorf("missing from field at offset %d", pos)
	}
	loc.FromField = Sequence{Start: pos, Length: len(fromLine)}
	loc.FromAddress = Sequence{Start: pos + len("from:"), Length: len(fromLine) - len("from:")}
	pos += len(fromLine) + 2

	toLine, err := readLine(header[:headerLen], pos)
	if err != nil {
		return nil, fmt.Errorf("to line: %w", err)
	}
	if !bytes.HasPrefix(toLine, []byte("to:")) {
		return nil, fmt.Errorf("missing to field at offset %d", pos)
	}
	loc.ToField = Sequence{Start: pos, Length: len(toLine)}
	loc.ToAddress = Sequence{Start: pos + len("to:"), Length: len(toLine) - len("to:")}
	pos += len(toLine) + 2

	fieldLen := len(dkimPrefix) + 32 + len(dkimSuffix)
	if pos+fieldLen > headerLen {
		return nil, fmt.Errorf("truncated dkim-signature field at offset %d", pos)
	}
	if !bytes.HasPrefix(header[pos:], []byte(dkimPrefix)) {
		return nil, fmt.Errorf("missing dkim-signature field at offset %d", pos)
	}
	if !bytes.Equal(header[pos+len(dkimPrefix)+32:pos+fieldLen], []byte(dkimSuffix)) {
		return nil, fmt.Errorf("malformed dkim-signature field at offset %d", pos)
	}
	loc.DKIMField = Sequence{Start: pos, Length: fieldLen}
	loc.BodyHashIndex = len(dkimPrefix)

	return loc, nil
}

// readLine returns the bytes from pos up to the next CRLF.
func readLine(data []byte, pos int) ([]byte, error) {
	idx := bytes.Index(data[pos:], []byte("\r\n"))
	if idx < 0 {
		return nil, fmt.Errorf("no line terminator after offset %d", pos)
	}
	return data[pos : pos+idx], nil
}

// Sign produces the PKCS#1 v1.5 RSA-SHA256 signature over the padded header
// buffer, the predicate the circuits verify.
func Sign(priv *rsa.PrivateKey, header []byte) ([]byte, error) {
	digest := sha256.Sum256(header)
	return rsa.SignPKCS1v15(cryptorand.Reader, priv, gocrypto.SHA256, digest[:])
}

// Verify mirrors the in-circuit signature predicate with crypto/rsa.
func Verify(pub *rsa.PublicKey, header, sig []byte) error {
	digest := sha256.Sum256(header)
	return rsa.VerifyPKCS1v15(pub, gocrypto.SHA256, digest[:], sig)
}

// DomainOf returns the domain suffix after the first '@'.
func DomainOf(addr string) (string, error) {
	i := strings.IndexByte(addr, '@')
	if i < 0 || i == len(addr)-1 {
		return "", fmt.Errorf("address %q has no domain suffix", addr)
	}
	return addr[i+1:], nil
}

// PadDomain zero-pads a claimed domain to the fixed public width.
func PadDomain(domain string) ([]byte, error) {
	if len(domain) > circuit.DomainCap {
		return nil, fmt.Errorf("domain %q exceeds %d bytes", domain, circuit.DomainCap)
	}
	out := make([]byte, circuit.DomainCap)
	copy(out, domain)
	return out, nil
}

// PadAddress zero-pads an address to the extraction capacity.
func PadAddress(addr string) ([]byte, error) {
	if len(addr) > circuit.AddressCap {
		return nil, fmt.Errorf("address %q exceeds %d bytes", addr, circuit.AddressCap)
	}
	out := make([]byte, circuit.AddressCap)
	copy(out, addr)
	return out, nil
}

func validateAddress(addr string) error {
	if len(addr) > circuit.AddressCap {
		return fmt.Errorf("address %q exceeds %d bytes", addr, circuit.AddressCap)
	}
	if strings.ContainsAny(addr, "\r\n") {
		return fmt.Errorf("address %q contains line terminators", addr)
	}
	if _, err := DomainOf(addr); err != nil {
		return err
	}
	return nil
}
