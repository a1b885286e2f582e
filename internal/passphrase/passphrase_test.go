package passphrase

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saylorsolutions/datalock/pkg/passlock"
)

func TestNormalize(t *testing.T) {
	pass, err := Normalize([]byte("  correct-horse \r\n"))
	assert.NoError(t, err)
	assert.Equal(t, passlock.Passphrase("correct-horse"), pass)

	pass, err = Normalize([]byte("inner space kept"))
	assert.NoError(t, err)
	assert.Equal(t, "inner space kept", string(pass))

	for _, empty := range []string{"", " ", "\t\n", "\r\n"} {
		_, err = Normalize([]byte(empty))
		assert.ErrorIs(t, err, passlock.ErrEmptyPassPhrase, "%q", empty)
	}
}

func TestNormalize_Copies(t *testing.T) {
	raw := []byte("secret")
	pass, err := Normalize(raw)
	require.NoError(t, err)
	zero(raw)
	assert.Equal(t, "secret", string(pass))
}

func fileWithContent(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestReader_Env(t *testing.T) {
	r := &Reader{
		Getenv: func(key string) string {
			if key == EnvVar {
				return " from-env "
			}
			return ""
		},
		In:     fileWithContent(t, "from-stdin\n"),
		Prompt: io.Discard,
	}
	pass, err := r.Read("Passphrase: ", true)
	assert.NoError(t, err)
	assert.Equal(t, "from-env", string(pass))
}

func TestReader_Piped(t *testing.T) {
	r := &Reader{
		Getenv: func(string) string { return "" },
		In:     fileWithContent(t, "  from-stdin  \nsecond line\n"),
		Prompt: io.Discard,
	}
	pass, err := r.Read("Passphrase: ", true)
	assert.NoError(t, err)
	assert.Equal(t, "from-stdin", string(pass))
}

func TestReader_PipedNoNewline(t *testing.T) {
	r := &Reader{
		Getenv: func(string) string { return "" },
		In:     fileWithContent(t, "no-newline"),
		Prompt: io.Discard,
	}
	pass, err := r.Read("Passphrase: ", false)
	assert.NoError(t, err)
	assert.Equal(t, "no-newline", string(pass))
}

func TestReader_PipedEmpty(t *testing.T) {
	r := &Reader{
		Getenv: func(string) string { return "" },
		In:     fileWithContent(t, "   \n"),
		Prompt: io.Discard,
	}
	_, err := r.Read("Passphrase: ", false)
	assert.ErrorIs(t, err, passlock.ErrEmptyPassPhrase)
}
