// Package passphrase obtains the batch passphrase from the environment or an interactive terminal.
package passphrase

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/saylorsolutions/datalock/pkg/passlock"
)

// EnvVar is checked before prompting.
const EnvVar = "DATALOCK_PASSPHRASE"

// ErrMismatch is returned when the confirmation doesn't match the first entry.
var ErrMismatch = errors.New("passphrases do not match")

// Reader reads a passphrase. Prompts are written to Prompt, which is stderr by default so stdout stays clean.
type Reader struct {
	Getenv func(string) string
	In     *os.File
	Prompt io.Writer
}

// NewReader returns a Reader wired to the process environment, stdin, and stderr.
func NewReader() *Reader {
	return &Reader{
		Getenv: os.Getenv,
		In:     os.Stdin,
		Prompt: os.Stderr,
	}
}

// Read returns the normalized passphrase.
// When confirm is true and the passphrase is entered interactively it's requested twice.
func (r *Reader) Read(prompt string, confirm bool) (passlock.Passphrase, error) {
	if env := r.Getenv(EnvVar); env != "" {
		return Normalize([]byte(env))
	}

	first, err := r.readOne(prompt)
	if err != nil {
		return nil, err
	}
	pass, err := Normalize(first)
	zero(first)
	if err != nil {
		return nil, err
	}
	if !confirm || !term.IsTerminal(int(r.In.Fd())) {
		return pass, nil
	}

	second, err := r.readOne("Confirm passphrase: ")
	if err != nil {
		pass.Zero()
		return nil, err
	}
	defer zero(second)
	if !bytes.Equal(pass, bytes.TrimSpace(second)) {
		pass.Zero()
		return nil, ErrMismatch
	}
	return pass, nil
}

func (r *Reader) readOne(prompt string) ([]byte, error) {
	fd := int(r.In.Fd())
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(r.Prompt, prompt)
		pass, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(r.Prompt)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		return pass, nil
	}

	// Piped input, take the first line.
	line, err := bufio.NewReader(r.In).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return line, nil
}

// Normalize trims surrounding whitespace and rejects an empty result with passlock.ErrEmptyPassPhrase.
// The returned passphrase is a copy, the input may be zeroed by the caller.
func Normalize(raw []byte) (passlock.Passphrase, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, passlock.ErrEmptyPassPhrase
	}
	return append(passlock.Passphrase(nil), trimmed...), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
