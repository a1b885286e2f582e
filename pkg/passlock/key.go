package passlock

import (
	"crypto/sha256"
	"fmt"

	bin "github.com/saylorsolutions/binmap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	SaltSize = 16
	KeySize  = 256 / 8

	DefaultPBKDF2Iterations  uint32 = 200_000
	DefaultScryptCost        uint32 = 1 << 17
	DefaultScryptBlockSize   uint32 = 8
	DefaultScryptParallelism uint8  = 1
	DefaultArgon2Time        uint32 = 3
	DefaultArgon2MemoryKiB   uint32 = 64 * 1024
	DefaultArgon2Threads     uint8  = 4

	// Upper bounds accepted from a payload header.
	// A payload is untrusted input, so it must not be able to demand an arbitrarily expensive derivation.
	// Scrypt needs 128*N*r bytes and Argon2id its memory cost, so either is held to 1GiB per derivation.
	// Concurrent derivations multiply this.
	MaxPBKDF2Iterations  uint32 = 10_000_000
	MaxScryptCost        uint32 = 1 << 20
	MaxScryptBlockSize   uint32 = 8
	MaxScryptParallelism uint8  = 16
	MaxArgon2Time        uint32 = 64
	MaxArgon2MemoryKiB   uint32 = 1024 * 1024
	MaxArgon2Threads     uint8  = 16
)

// KDF identifies the password based key derivation function used by a KeyDeriver.
type KDF uint8

const (
	KDFPBKDF2 KDF = iota + 1
	KDFScrypt
	KDFArgon2id
)

func (k KDF) String() string {
	switch k {
	case KDFPBKDF2:
		return "pbkdf2-sha256"
	case KDFScrypt:
		return "scrypt"
	case KDFArgon2id:
		return "argon2id"
	default:
		return fmt.Sprintf("kdf(%d)", uint8(k))
	}
}

// Key is an AES-256 or ChaCha20 key that can be used to encrypt or decrypt a payload.
type Key []byte

// Salt is a slice of secure random bytes mixed into key derivation, so the same Passphrase yields a different Key per payload.
type Salt []byte

// Passphrase is a human-readable string used to derive a Key.
type Passphrase []byte

// Zero overwrites the passphrase in place.
func (p Passphrase) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// KeyDeriver turns a Passphrase and Salt into a Key.
// The same settings must be used to derive a key for decryption as were used for encryption.
// The versioned payload format stores these settings so they don't need to be known ahead of time.
type KeyDeriver struct {
	kdf     uint8
	cost    uint32
	memory  uint32
	threads uint8
}

func (d *KeyDeriver) mapper() bin.Mapper {
	return bin.MapSequence(
		bin.Byte(&d.kdf),
		bin.Int(&d.cost),
		bin.Int(&d.memory),
		bin.Byte(&d.threads),
	)
}

// derivationParamsSize is the encoded size of the mapper fields.
const derivationParamsSize = 1 + 4 + 4 + 1

type DeriverOpt = func(*KeyDeriver) error

// UsePBKDF2 selects PBKDF2 with HMAC-SHA256 and the given iteration count.
func UsePBKDF2(iterations uint32) DeriverOpt {
	return func(d *KeyDeriver) error {
		if iterations == 0 {
			return fmt.Errorf("%w: PBKDF2 iterations must be at least 1", ErrInvalidOption)
		}
		*d = KeyDeriver{kdf: uint8(KDFPBKDF2), cost: iterations}
		return nil
	}
}

// UseScrypt selects scrypt with the given CPU/memory cost (N), relative block size (r), and parallelism (p).
// Only use this option if you know what you're doing, UseDefaultScrypt is a reasonable choice otherwise.
func UseScrypt(n, r uint32, p uint8) DeriverOpt {
	return func(d *KeyDeriver) error {
		*d = KeyDeriver{kdf: uint8(KDFScrypt), cost: n, memory: r, threads: p}
		return d.validate(false)
	}
}

func UseDefaultScrypt() DeriverOpt {
	return UseScrypt(DefaultScryptCost, DefaultScryptBlockSize, DefaultScryptParallelism)
}

// UseArgon2id selects Argon2id with the given time cost, memory cost in KiB, and thread count.
func UseArgon2id(time, memoryKiB uint32, threads uint8) DeriverOpt {
	return func(d *KeyDeriver) error {
		*d = KeyDeriver{kdf: uint8(KDFArgon2id), cost: time, memory: memoryKiB, threads: threads}
		return d.validate(false)
	}
}

func UseDefaultArgon2id() DeriverOpt {
	return UseArgon2id(DefaultArgon2Time, DefaultArgon2MemoryKiB, DefaultArgon2Threads)
}

// NewKeyDeriver creates a new KeyDeriver using the options provided as zero or more DeriverOpt.
// By default, the deriver uses PBKDF2-HMAC-SHA256 with DefaultPBKDF2Iterations.
func NewKeyDeriver(opts ...DeriverOpt) (*KeyDeriver, error) {
	d := &KeyDeriver{
		kdf:  uint8(KDFPBKDF2),
		cost: DefaultPBKDF2Iterations,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// KDF returns the key derivation function this deriver uses.
func (d *KeyDeriver) KDF() KDF {
	return KDF(d.kdf)
}

// Cost returns the primary work factor: PBKDF2 iterations, scrypt N, or Argon2 time.
func (d *KeyDeriver) Cost() uint32 {
	return d.cost
}

// validate checks that the settings are usable.
// When bounded is true the work factors must also be within the Max* limits, which applies to settings read from a payload.
func (d *KeyDeriver) validate(bounded bool) error {
	switch KDF(d.kdf) {
	case KDFPBKDF2:
		if d.cost == 0 {
			return fmt.Errorf("%w: PBKDF2 iterations must be at least 1", ErrInvalidOption)
		}
		if bounded && d.cost > MaxPBKDF2Iterations {
			return fmt.Errorf("%w: PBKDF2 iterations %d exceed limit %d", ErrInvalidOption, d.cost, MaxPBKDF2Iterations)
		}
	case KDFScrypt:
		if d.cost <= 1 || d.cost&(d.cost-1) != 0 {
			return fmt.Errorf("%w: scrypt cost must be a power of 2 greater than 1", ErrInvalidOption)
		}
		if d.memory == 0 || d.threads == 0 {
			return fmt.Errorf("%w: scrypt block size and parallelism must be at least 1", ErrInvalidOption)
		}
		if uint64(d.memory)*uint64(d.threads) >= 1<<30 {
			return fmt.Errorf("%w: scrypt block size and parallelism are too large", ErrInvalidOption)
		}
		if bounded && (d.cost > MaxScryptCost || d.memory > MaxScryptBlockSize || d.threads > MaxScryptParallelism) {
			return fmt.Errorf("%w: scrypt parameters exceed limits", ErrInvalidOption)
		}
	case KDFArgon2id:
		if d.cost == 0 || d.memory == 0 || d.threads == 0 {
			return fmt.Errorf("%w: argon2id time, memory, and threads must be at least 1", ErrInvalidOption)
		}
		if bounded && (d.cost > MaxArgon2Time || d.memory > MaxArgon2MemoryKiB || d.threads > MaxArgon2Threads) {
			return fmt.Errorf("%w: argon2id parameters exceed limits", ErrInvalidOption)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, KDF(d.kdf))
	}
	return nil
}

// Derive deterministically derives a KeySize Key from the passphrase and salt.
// An empty passphrase is accepted here, rejecting it is the caller's policy.
// This doesn't ensure that the given passphrase is the *correct* passphrase used to encrypt a payload.
func (d *KeyDeriver) Derive(pass Passphrase, salt Salt) (Key, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}
	switch KDF(d.kdf) {
	case KDFPBKDF2:
		return pbkdf2.Key(pass, salt, int(d.cost), KeySize, sha256.New), nil
	case KDFScrypt:
		key, err := scrypt.Key(pass, salt, int(d.cost), int(d.memory), int(d.threads), KeySize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
		return key, nil
	case KDFArgon2id:
		return argon2.IDKey(pass, salt, d.cost, d.memory, d.threads, KeySize), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, KDF(d.kdf))
	}
}

// GenerateKey will generate a fresh Salt and derive a Key from it.
func (d *KeyDeriver) GenerateKey(pass Passphrase) (key Key, salt Salt, err error) {
	salt, err = randomBytes(SaltSize)
	if err != nil {
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}
	key, err = d.Derive(pass, salt)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}
