package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	var (
		buf  bytes.Buffer
		code = -1
	)
	origOut, origExit := stderr, exit
	stderr = &buf
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr, exit = origOut, origExit
	})
	return &buf, &code
}

func TestEcho(t *testing.T) {
	buf, code := capture(t)
	Echo("datalock %s", "0.1.0")
	Echo("already terminated\n")
	assert.Equal(t, "datalock 0.1.0\nalready terminated\n", buf.String())
	assert.Equal(t, -1, *code)
}

func TestFatal(t *testing.T) {
	buf, code := capture(t)
	Fatal("Failed to read passphrase: %v", "boom")
	assert.Equal(t, "Failed to read passphrase: boom\n", buf.String())
	assert.Equal(t, 1, *code)
}
