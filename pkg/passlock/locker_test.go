package passlock

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocker(t *testing.T, opts ...LockerOpt) *Locker {
	t.Helper()
	opts = append([]LockerOpt{WithDeriverOpts(UsePBKDF2(testIterations))}, opts...)
	l, err := NewLocker(opts...)
	require.NoError(t, err)
	return l
}

func decodedLen(t *testing.T, payload []byte) int {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(string(payload))
	require.NoError(t, err)
	return len(raw)
}

func TestEncryptFile_EmptyInput(t *testing.T) {
	payload, err := EncryptFile(nil, []byte("correct-horse"))
	require.NoError(t, err)
	assert.Equal(t, SaltSize+NonceSize+TagSize, decodedLen(t, payload))
	assert.Equal(t, 44, decodedLen(t, payload))

	plain, err := DecryptFile(payload, []byte("correct-horse"))
	assert.NoError(t, err)
	assert.NotNil(t, plain)
	assert.Empty(t, plain)

	plain, err = DecryptFile(payload, []byte("wrong-password"))
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Nil(t, plain)
}

func TestEncryptFile_Hello(t *testing.T) {
	pass := Passphrase("correct-horse")
	a, err := EncryptFile([]byte("hello"), pass)
	require.NoError(t, err)
	b, err := EncryptFile([]byte("hello"), pass)
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b))

	for _, payload := range [][]byte{a, b} {
		plain, err := DecryptFile(payload, pass)
		assert.NoError(t, err)
		assert.Equal(t, "hello", string(plain))
	}
}

func TestLocker_RoundTrip(t *testing.T) {
	lockers := map[string]*Locker{
		"raw":                 testLocker(t),
		"versioned aes":       testLocker(t, WithFormat(FormatVersioned)),
		"versioned chacha":    testLocker(t, WithFormat(FormatVersioned), WithSuite(SuiteChaCha20Poly1305)),
		"versioned scrypt":    testLocker(t, WithFormat(FormatVersioned), WithDeriverOpts(UseScrypt(1<<4, 8, 1))),
		"versioned argon2id":  testLocker(t, WithFormat(FormatVersioned), WithDeriverOpts(UseArgon2id(1, 64, 1))),
		"raw associated data": testLocker(t, WithAssociatedData([]byte("char_freq.json.enc"))),
	}
	inputs := [][]byte{
		{},
		[]byte("hello"),
		[]byte(`{"的": 1024, "了": 512}`),
		bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6, 7}, 4096),
	}
	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			for _, input := range inputs {
				payload, err := l.Seal([]byte("a test password"), input)
				require.NoError(t, err)

				plain, err := l.Open([]byte("a test password"), payload)
				require.NoError(t, err)
				assert.Equal(t, input, []byte(plain))

				_, err = l.Open([]byte("a test passwore"), payload)
				assert.ErrorIs(t, err, ErrIntegrity)
			}
		})
	}
}

func TestLocker_TamperDetection(t *testing.T) {
	for _, format := range []Format{FormatRaw, FormatVersioned} {
		t.Run(format.String(), func(t *testing.T) {
			l := testLocker(t, WithFormat(format))
			pass := Passphrase("password")
			payload, err := l.Seal(pass, []byte("hello"))
			require.NoError(t, err)
			raw, err := base64.StdEncoding.DecodeString(string(payload))
			require.NoError(t, err)

			start := 0
			if format == FormatVersioned {
				start = headerSize
			}
			ciphertextStart := start + SaltSize + NonceSize
			for i := start; i < len(raw); i++ {
				for bit := 0; bit < 8; bit++ {
					if i < ciphertextStart && bit > 0 {
						// A single bit per salt/nonce byte is enough, the full sweep is for the ciphertext.
						continue
					}
					tampered := bytes.Clone(raw)
					tampered[i] ^= 1 << bit
					plain, err := l.Open(pass, []byte(base64.StdEncoding.EncodeToString(tampered)))
					assert.ErrorIs(t, err, ErrIntegrity, "byte %d bit %d", i, bit)
					assert.Nil(t, plain)
				}
			}
		})
	}
}

func TestLocker_HeaderTamper(t *testing.T) {
	l := testLocker(t, WithFormat(FormatVersioned))
	pass := Passphrase("password")
	payload, err := l.Seal(pass, []byte("hello"))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(string(payload))
	require.NoError(t, err)

	// Swapping the suite still parses, but the header is bound into the tag.
	raw[3] = byte(SuiteChaCha20Poly1305)
	_, err = l.Open(pass, []byte(base64.StdEncoding.EncodeToString(raw)))
	assert.ErrorIs(t, err, ErrIntegrity)

	// Changing the iteration count parses, but derives a different key.
	raw[3] = byte(SuiteAES256GCM)
	raw[8] ^= 0x01
	_, err = l.Open(pass, []byte(base64.StdEncoding.EncodeToString(raw)))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestLocker_VersionedUsesHeaderSettings(t *testing.T) {
	writer := testLocker(t, WithFormat(FormatVersioned), WithDeriverOpts(UsePBKDF2(1234)))
	reader := testLocker(t, WithFormat(FormatVersioned), WithDeriverOpts(UsePBKDF2(4321)))
	payload, err := writer.Seal([]byte("password"), []byte("settings travel with the payload"))
	require.NoError(t, err)

	plain, err := reader.Open([]byte("password"), payload)
	assert.NoError(t, err)
	assert.Equal(t, "settings travel with the payload", string(plain))
}

func TestLocker_RawOpensVersioned(t *testing.T) {
	pass := Passphrase("correct-horse")
	reader := testLocker(t)
	tests := map[string]struct {
		writer *Locker
		reader *Locker
	}{
		"aes": {
			writer: testLocker(t, WithFormat(FormatVersioned), WithDeriverOpts(UsePBKDF2(1234))),
			reader: reader,
		},
		"chacha": {
			writer: testLocker(t, WithFormat(FormatVersioned), WithSuite(SuiteChaCha20Poly1305)),
			reader: reader,
		},
		"argon2id": {
			writer: testLocker(t, WithFormat(FormatVersioned), WithDeriverOpts(UseArgon2id(1, 64, 1))),
			reader: reader,
		},
		"associated data": {
			writer: testLocker(t, WithFormat(FormatVersioned), WithAssociatedData([]byte("a.enc"))),
			reader: testLocker(t, WithAssociatedData([]byte("a.enc"))),
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			payload, err := tc.writer.Seal(pass, []byte("self describing"))
			require.NoError(t, err)

			plain, err := tc.reader.Open(pass, payload)
			require.NoError(t, err)
			assert.Equal(t, "self describing", string(plain))

			_, err = tc.reader.Open(Passphrase("wrong-password"), payload)
			assert.ErrorIs(t, err, ErrIntegrity)
		})
	}
}

func TestLocker_RawSaltLooksLikeHeader(t *testing.T) {
	l := testLocker(t)
	header, err := EncodeHeader(SuiteAES256GCM, l.deriver)
	require.NoError(t, err)
	salt := append(header, 0, 0)
	require.Len(t, salt, SaltSize)

	orig := randSource
	randSource = io.MultiReader(bytes.NewReader(salt), rand.Reader)
	payload, err := l.Seal([]byte("password"), []byte("unlucky salt"))
	randSource = orig
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(string(payload))
	require.NoError(t, err)
	require.True(t, hasMagic(raw))

	plain, err := l.Open([]byte("password"), payload)
	require.NoError(t, err)
	assert.Equal(t, "unlucky salt", string(plain))
}

func TestLocker_RawNeedsMatchingIterations(t *testing.T) {
	writer := testLocker(t, WithDeriverOpts(UsePBKDF2(1234)))
	reader := testLocker(t, WithDeriverOpts(UsePBKDF2(4321)))
	payload, err := writer.Seal([]byte("password"), []byte("hello"))
	require.NoError(t, err)

	_, err = reader.Open([]byte("password"), payload)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestLocker_AssociatedDataMismatch(t *testing.T) {
	a := testLocker(t, WithAssociatedData([]byte("char_freq.json.enc")))
	b := testLocker(t, WithAssociatedData([]byte("char_summary.json.enc")))
	none := testLocker(t)

	payload, err := a.Seal([]byte("password"), []byte("hello"))
	require.NoError(t, err)

	_, err = b.Open([]byte("password"), payload)
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = none.Open([]byte("password"), payload)
	assert.ErrorIs(t, err, ErrIntegrity)
	plain, err := a.Open([]byte("password"), payload)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestLocker_Malformed(t *testing.T) {
	l := testLocker(t)
	_, err := l.Open([]byte("password"), []byte("%%%"))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = l.Open([]byte("password"), []byte(base64.StdEncoding.EncodeToString(make([]byte, 27))))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	// Long enough to split, too short to hold a tag.
	_, err = l.Open([]byte("password"), []byte(base64.StdEncoding.EncodeToString(make([]byte, 30))))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestNewLocker_InvalidCombinations(t *testing.T) {
	_, err := NewLocker(WithSuite(SuiteChaCha20Poly1305))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewLocker(WithDeriverOpts(UseDefaultScrypt()))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewLocker(WithFormat(FormatVersioned), WithDeriverOpts(UsePBKDF2(MaxPBKDF2Iterations+1)))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewLocker(WithKeyDeriver(nil))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewLocker(WithSuite(Suite(7)))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewLocker(WithFormat(Format(7)))
	assert.ErrorIs(t, err, ErrUnsupported)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy pool unavailable")
}

func TestLocker_RandomnessFailure(t *testing.T) {
	l := testLocker(t)
	orig := randSource
	randSource = failingReader{}
	t.Cleanup(func() { randSource = orig })

	payload, err := l.Seal([]byte("password"), []byte("hello"))
	assert.Error(t, err)
	assert.ErrorIs(t, err, errRandomnessShort)
	assert.Nil(t, payload)
}

func TestLocker_Concurrent(t *testing.T) {
	l := testLocker(t)
	var (
		wg       sync.WaitGroup
		mux      sync.Mutex
		payloads = map[string]struct{}{}
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := l.Seal([]byte("password"), []byte("hello"))
			if !assert.NoError(t, err) {
				return
			}
			plain, err := l.Open([]byte("password"), payload)
			assert.NoError(t, err)
			assert.Equal(t, "hello", string(plain))
			mux.Lock()
			payloads[string(payload)] = struct{}{}
			mux.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, payloads, 16)
}
