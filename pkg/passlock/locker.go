package passlock

import (
	"errors"
	"fmt"
)

// Locker encrypts and decrypts whole payloads with a Passphrase.
// A Locker is immutable once created and safe for concurrent use, each call generates its own salt and nonce.
type Locker struct {
	deriver    *KeyDeriver
	suite      Suite
	format     Format
	associated []byte
}

type LockerOpt = func(*Locker) error

// WithKeyDeriver sets the KeyDeriver used when encrypting, and when decrypting a FormatRaw payload.
// Versioned payloads are always decrypted with the settings recorded in their header.
func WithKeyDeriver(deriver *KeyDeriver) LockerOpt {
	return func(l *Locker) error {
		if deriver == nil {
			return fmt.Errorf("%w: nil KeyDeriver", ErrInvalidOption)
		}
		l.deriver = deriver
		return nil
	}
}

// WithDeriverOpts is a shortcut for WithKeyDeriver(NewKeyDeriver(opts...)).
func WithDeriverOpts(opts ...DeriverOpt) LockerOpt {
	return func(l *Locker) error {
		deriver, err := NewKeyDeriver(opts...)
		if err != nil {
			return err
		}
		l.deriver = deriver
		return nil
	}
}

// WithSuite selects the AEAD construction.
// FormatRaw payloads can only carry SuiteAES256GCM, since there's nowhere to record anything else.
func WithSuite(suite Suite) LockerOpt {
	return func(l *Locker) error {
		if suite != SuiteAES256GCM && suite != SuiteChaCha20Poly1305 {
			return fmt.Errorf("%w: %s", ErrUnsupported, suite)
		}
		l.suite = suite
		return nil
	}
}

func WithFormat(format Format) LockerOpt {
	return func(l *Locker) error {
		if format != FormatRaw && format != FormatVersioned {
			return fmt.Errorf("%w: %s", ErrUnsupported, format)
		}
		l.format = format
		return nil
	}
}

// WithAssociatedData binds data into the authentication tag without storing it in the payload.
// The same data must be supplied to decrypt, for example the name a payload is published under.
func WithAssociatedData(associated []byte) LockerOpt {
	return func(l *Locker) error {
		l.associated = append([]byte(nil), associated...)
		return nil
	}
}

// NewLocker creates a Locker.
// By default it produces FormatRaw payloads with SuiteAES256GCM and PBKDF2 at DefaultPBKDF2Iterations.
func NewLocker(opts ...LockerOpt) (*Locker, error) {
	l := &Locker{
		suite:  SuiteAES256GCM,
		format: FormatRaw,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	if l.deriver == nil {
		deriver, err := NewKeyDeriver()
		if err != nil {
			return nil, err
		}
		l.deriver = deriver
	}
	if l.format == FormatRaw && l.suite != SuiteAES256GCM {
		return nil, fmt.Errorf("%w: the raw format only supports %s", ErrInvalidOption, SuiteAES256GCM)
	}
	if l.format == FormatRaw && l.deriver.KDF() != KDFPBKDF2 {
		return nil, fmt.Errorf("%w: the raw format only supports %s", ErrInvalidOption, KDFPBKDF2)
	}
	if l.format == FormatVersioned {
		// Payloads carrying settings beyond the limits would be refused by Open.
		if err := l.deriver.validate(true); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Locker) Format() Format {
	return l.format
}

// Seal encrypts data with a key derived from pass, returning base64 text that contains everything needed to decrypt it except the passphrase.
func (l *Locker) Seal(pass Passphrase, data Plaintext) ([]byte, error) {
	key, salt, err := l.deriver.GenerateKey(pass)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	switch l.format {
	case FormatVersioned:
		header, err := EncodeHeader(l.suite, l.deriver)
		if err != nil {
			return nil, err
		}
		sealed, err := l.suite.Seal(key, nonce, data, bindHeader(header, l.associated))
		if err != nil {
			return nil, err
		}
		return SerializeVersioned(header, salt, nonce, sealed)
	default:
		sealed, err := l.suite.Seal(key, nonce, data, l.associated)
		if err != nil {
			return nil, err
		}
		return Serialize(salt, nonce, sealed)
	}
}

// Open decrypts a payload produced by Seal.
// A Locker using FormatRaw also recognizes versioned payloads by their header, and opens them with the header's settings.
// It returns ErrMalformedPayload if the payload can't be parsed, and ErrIntegrity if it fails authentication.
func (l *Locker) Open(pass Passphrase, payload []byte) (Plaintext, error) {
	if l.format != FormatRaw {
		env, err := l.format.Decode(payload)
		if err != nil {
			return nil, err
		}
		return l.open(pass, env)
	}

	raw, err := decodeText(payload)
	if err != nil {
		return nil, err
	}
	if hasMagic(raw) {
		if env, err := splitVersioned(raw); err == nil {
			plain, err := l.open(pass, env)
			if err == nil || !errors.Is(err, ErrIntegrity) {
				return plain, err
			}
			// A random salt can start with the magic number, so a raw payload is still possible.
		}
	}
	env, err := splitRaw(raw)
	if err != nil {
		return nil, err
	}
	return l.open(pass, env)
}

func (l *Locker) open(pass Passphrase, env *Envelope) (Plaintext, error) {
	deriver := l.deriver
	associated := l.associated
	if env.Deriver != nil {
		deriver = env.Deriver
		associated = bindHeader(env.Header, l.associated)
	}
	key, err := deriver.Derive(pass, env.Salt)
	if err != nil {
		return nil, err
	}
	return env.Suite.Open(key, env.Nonce, env.Ciphertext, associated)
}

func bindHeader(header, associated []byte) []byte {
	bound := make([]byte, 0, len(header)+len(associated))
	bound = append(bound, header...)
	return append(bound, associated...)
}

var defaultLocker = func() *Locker {
	l, err := NewLocker()
	if err != nil {
		panic(err)
	}
	return l
}()

// EncryptFile seals plaintext with the default Locker settings, producing a payload readable by DecryptFile.
func EncryptFile(data Plaintext, pass Passphrase) ([]byte, error) {
	return defaultLocker.Seal(pass, data)
}

// DecryptFile opens a payload produced by EncryptFile.
func DecryptFile(payload []byte, pass Passphrase) (Plaintext, error) {
	return defaultLocker.Open(pass, payload)
}
