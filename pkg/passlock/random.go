package passlock

import (
	"crypto/rand"
	"fmt"
	"io"
)

// randSource is the OS CSPRNG. Tests swap it to exercise failure paths, never to make output predictable.
var randSource io.Reader = rand.Reader

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(randSource, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: read %d of %d bytes: %v", errRandomnessShort, read, n, err)
	}
	return buf, nil
}
