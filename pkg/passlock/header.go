package passlock

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/saylorsolutions/binmap"
)

type header struct {
	magic   uint16
	version uint8
	suite   uint8
	deriver KeyDeriver
}

func (h *header) mapper() bin.Mapper {
	return bin.MapSequence(
		bin.Int(&h.magic),
		bin.Byte(&h.version),
		bin.Byte(&h.suite),
		h.deriver.mapper(),
	)
}

// EncodeHeader produces the fixed size header of a versioned payload.
// The header is also bound into the associated data when sealing, so tampering with it fails authentication.
func EncodeHeader(suite Suite, deriver *KeyDeriver) ([]byte, error) {
	if deriver == nil {
		return nil, fmt.Errorf("%w: nil KeyDeriver", ErrInvalidOption)
	}
	if err := deriver.validate(false); err != nil {
		return nil, err
	}
	if suite != SuiteAES256GCM && suite != SuiteChaCha20Poly1305 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, suite)
	}
	h := header{
		magic:   magicBytes,
		version: formatVersion,
		suite:   uint8(suite),
		deriver: *deriver,
	}
	var buf bytes.Buffer
	if err := h.mapper().Write(&buf, byteOrder); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeHeader parses a header produced by EncodeHeader.
// Work factors outside of the Max* limits are rejected.
func DecodeHeader(data []byte) (Suite, *KeyDeriver, error) {
	if len(data) != headerSize {
		return 0, nil, fmt.Errorf("%w: header is %d bytes, want %d", ErrMalformedPayload, len(data), headerSize)
	}
	var h header
	if err := h.mapper().Read(bytes.NewReader(data), byteOrder); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if h.magic != magicBytes {
		return 0, nil, fmt.Errorf("%w: bad magic 0x%04x", ErrMalformedPayload, h.magic)
	}
	if h.version != formatVersion {
		return 0, nil, fmt.Errorf("%w: %w: version %d", ErrMalformedPayload, ErrUnsupported, h.version)
	}
	suite := Suite(h.suite)
	if suite != SuiteAES256GCM && suite != SuiteChaCha20Poly1305 {
		return 0, nil, fmt.Errorf("%w: %w: %s", ErrMalformedPayload, ErrUnsupported, suite)
	}
	deriver := h.deriver
	if err := deriver.validate(true); err != nil {
		if errors.Is(err, ErrUnsupported) {
			return 0, nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return suite, &deriver, nil
}
