// Package attestation defines the on-disk envelope wrapping a proof, its
// public signals and the claims a verifier re-derives the public witness
// from. The payload is a protobuf Struct behind a magic header, so other
// toolchains can read it without this package.
package attestation

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MagicHeader identifies a zkattest envelope, followed by a version byte.
var MagicHeader = []byte{0x5a, 0x4b, 0x41, 0x01}

const envelopeVersion = 0x00

// Envelope is one attestation in portable form.
type Envelope struct {
	Kind          string
	ProofHex      string
	PublicSignals []string
	Claims        map[string]string
	Metadata      map[string]interface{}
}

// Marshal serializes the envelope with its magic header.
func (e *Envelope) Marshal() ([]byte, error) {
	signals := make([]interface{}, len(e.PublicSignals))
	for i, s := range e.PublicSignals {
		signals[i] = s
	}
	claims := make(map[string]interface{}, len(e.Claims))
	for k, v := range e.Claims {
		claims[k] = v
	}
	payload := map[string]interface{}{
		"kind":          e.Kind,
		"proofHex":      e.ProofHex,
		"publicSignals": signals,
		"claims":        claims,
	}
	if e.Metadata != nil {
		payload["metadata"] = e.Metadata
	}

	st, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build envelope struct: %w", err)
	}
	body, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	out := make([]byte, 0, len(MagicHeader)+1+len(body))
	out = append(out, MagicHeader...)
	out = append(out, envelopeVersion)
	return append(out, body...), nil
}

// Unmarshal parses an envelope from its wire form.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) < len(MagicHeader)+1 || !bytes.Equal(data[:len(MagicHeader)], MagicHeader) {
		return nil, errors.New("invalid envelope magic header")
	}
	if data[len(MagicHeader)] != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", data[len(MagicHeader)])
	}

	st := &structpb.Struct{}
	if err := proto.Unmarshal(data[len(MagicHeader)+1:], st); err != nil {
		return nil, fmt.Errorf("failed to parse envelope payload: %w", err)
	}
	m := st.AsMap()

	e := &Envelope{Claims: map[string]string{}}
	if v, ok := m["kind"].(string); ok {
		e.Kind = v
	}
	if v, ok := m["proofHex"].(string); ok {
		e.ProofHex = v
	}
	if v, ok := m["publicSignals"].([]interface{}); ok {
		for _, s := range v {
			str, ok := s.(string)
			if !ok {
				return nil, errors.New("public signal is not a string")
			}
			e.PublicSignals = append(e.PublicSignals, str)
		}
	}
	if v, ok := m["claims"].(map[string]interface{}); ok {
		for k, cv := range v {
			str, ok := cv.(string)
			if !ok {
				return nil, fmt.Errorf("claim %q is not a string", k)
			}
			e.Claims[k] = str
		}
	}
	if v, ok := m["metadata"].(map[string]interface{}); ok {
		e.Metadata = v
	}

	if e.Kind == "" || e.ProofHex == "" {
		return nil, errors.New("envelope missing kind or proof")
	}
	return e, nil
}

// Save writes the envelope to a file.
func (e *Envelope) Save(path string) error {
	data, err := e.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and parses an envelope file.
func Load(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
