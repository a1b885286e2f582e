package passlock

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Format selects the byte layout of a serialized payload.
type Format uint8

const (
	// FormatRaw is salt || nonce || ciphertext, base64 encoded.
	// There is no header, so the KDF settings must be known to the reader ahead of time.
	FormatRaw Format = iota
	// FormatVersioned prepends a header naming the format version, cipher suite, and KDF settings.
	FormatVersioned
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatVersioned:
		return "v1"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

const (
	minRawSize = SaltSize + NonceSize

	magicBytes    uint16 = 0x444c // "DL"
	formatVersion uint8  = 1
	headerSize           = 2 + 1 + 1 + derivationParamsSize
)

var (
	byteOrder binary.ByteOrder = binary.BigEndian
	encoding                   = base64.StdEncoding
)

// Envelope is a deserialized payload.
type Envelope struct {
	// Header is the encoded header of a versioned payload, and is nil for a raw payload.
	Header []byte
	// Suite is the cipher suite named by the header. Raw payloads are always SuiteAES256GCM.
	Suite Suite
	// Deriver is reconstructed from the header, and is nil for a raw payload.
	Deriver    *KeyDeriver
	Salt       Salt
	Nonce      Nonce
	Ciphertext Encrypted
}

func checkSizes(salt Salt, nonce Nonce) error {
	if len(salt) != SaltSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}
	if len(nonce) != NonceSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidNonce, len(nonce), NonceSize)
	}
	return nil
}

// Serialize concatenates salt, nonce, and ciphertext in that order and base64 encodes the result.
func Serialize(salt Salt, nonce Nonce, data Encrypted) ([]byte, error) {
	if err := checkSizes(salt, nonce); err != nil {
		return nil, err
	}
	raw := make([]byte, 0, minRawSize+len(data))
	raw = append(raw, salt...)
	raw = append(raw, nonce...)
	raw = append(raw, data...)
	return encodeText(raw), nil
}

// Deserialize reverses Serialize.
// Surrounding whitespace is ignored, and the decoded payload must be at least long enough to contain a salt and nonce.
func Deserialize(payload []byte) (Salt, Nonce, Encrypted, error) {
	raw, err := decodeText(payload)
	if err != nil {
		return nil, nil, nil, err
	}
	env, err := splitRaw(raw)
	if err != nil {
		return nil, nil, nil, err
	}
	return env.Salt, env.Nonce, env.Ciphertext, nil
}

func splitRaw(raw []byte) (*Envelope, error) {
	if len(raw) < minRawSize {
		return nil, fmt.Errorf("%w: decoded length %d is shorter than the minimum %d", ErrMalformedPayload, len(raw), minRawSize)
	}
	return &Envelope{
		Suite:      SuiteAES256GCM,
		Salt:       Salt(raw[:SaltSize]),
		Nonce:      Nonce(raw[SaltSize:minRawSize]),
		Ciphertext: Encrypted(raw[minRawSize:]),
	}, nil
}

// SerializeVersioned writes a header for the suite and deriver, followed by salt, nonce, and ciphertext, base64 encoded.
// The data must have been sealed with the header bytes bound into the associated data, see EncodeHeader.
func SerializeVersioned(header []byte, salt Salt, nonce Nonce, data Encrypted) ([]byte, error) {
	if len(header) != headerSize {
		return nil, fmt.Errorf("%w: header is %d bytes, want %d", ErrInvalidOption, len(header), headerSize)
	}
	if err := checkSizes(salt, nonce); err != nil {
		return nil, err
	}
	raw := make([]byte, 0, headerSize+minRawSize+len(data))
	raw = append(raw, header...)
	raw = append(raw, salt...)
	raw = append(raw, nonce...)
	raw = append(raw, data...)
	return encodeText(raw), nil
}

// DeserializeVersioned reverses SerializeVersioned.
func DeserializeVersioned(payload []byte) (*Envelope, error) {
	raw, err := decodeText(payload)
	if err != nil {
		return nil, err
	}
	return splitVersioned(raw)
}

func splitVersioned(raw []byte) (*Envelope, error) {
	if len(raw) < headerSize+minRawSize {
		return nil, fmt.Errorf("%w: decoded length %d is shorter than the minimum %d", ErrMalformedPayload, len(raw), headerSize+minRawSize)
	}
	suite, deriver, err := DecodeHeader(raw[:headerSize])
	if err != nil {
		return nil, err
	}
	env, err := splitRaw(raw[headerSize:])
	if err != nil {
		return nil, err
	}
	env.Header = raw[:headerSize]
	env.Suite = suite
	env.Deriver = deriver
	return env, nil
}

// hasMagic reports whether decoded payload bytes start like a versioned header.
func hasMagic(raw []byte) bool {
	return len(raw) >= 2 && byteOrder.Uint16(raw) == magicBytes
}

// Decode deserializes a payload in the given format.
func (f Format) Decode(payload []byte) (*Envelope, error) {
	switch f {
	case FormatRaw:
		raw, err := decodeText(payload)
		if err != nil {
			return nil, err
		}
		return splitRaw(raw)
	case FormatVersioned:
		return DeserializeVersioned(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
}

func encodeText(raw []byte) []byte {
	out := make([]byte, encoding.EncodedLen(len(raw)))
	encoding.Encode(out, raw)
	return out
}

func decodeText(payload []byte) ([]byte, error) {
	payload = bytes.TrimSpace(payload)
	// The decoder skips line breaks anywhere, a payload is a single line.
	if i := bytes.IndexAny(payload, "\r\n"); i >= 0 {
		return nil, fmt.Errorf("%w: line break at offset %d", ErrMalformedPayload, i)
	}
	raw := make([]byte, encoding.DecodedLen(len(payload)))
	n, err := encoding.Decode(raw, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return raw[:n], nil
}
