package passlock

import "errors"

var (
	// ErrEmptyPassPhrase is returned by the driver boundary when no passphrase was supplied.
	// The core functions accept an empty passphrase, it's up to the caller to reject it.
	ErrEmptyPassPhrase = errors.New("cannot use an empty passphrase")
	// ErrIntegrity is returned when a payload fails authentication.
	// This happens with the wrong passphrase, a corrupted or tampered payload, or mismatched associated data.
	ErrIntegrity = errors.New("payload failed authentication")
	// ErrMalformedPayload is returned when a payload can't be decoded or is too short to contain a salt and nonce.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupported is returned when a versioned payload names a version, cipher suite, or KDF that isn't known.
	ErrUnsupported     = errors.New("unsupported payload parameter")
	ErrInvalidKey      = errors.New("invalid key length")
	ErrInvalidNonce    = errors.New("invalid nonce length")
	ErrInvalidSalt     = errors.New("invalid salt length")
	ErrInvalidOption   = errors.New("invalid option")
	errRandomnessShort = errors.New("unable to read enough random data")
)
