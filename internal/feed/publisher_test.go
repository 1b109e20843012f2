package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("224.0.0.1:30001")
	require.NoError(t, err)
	assert.Equal(t, "224.0.0.1", host)
	assert.Equal(t, 30001, port)

	_, _, err = splitHostPort("224.0.0.1")
	assert.Error(t, err)

	_, _, err = splitHostPort("224.0.0.1:notaport")
	assert.Error(t, err)
}

func TestReadFullFD(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	// Split the write so the reader has to loop for the full message.
	go func() {
		unix.Write(fds[1], payload[:3])
		unix.Write(fds[1], payload[3:])
		unix.Close(fds[1])
	}()

	buf := make([]byte, len(payload))
	require.NoError(t, readFullFD(fds[0], buf))
	assert.Equal(t, payload, buf)

	// The peer is closed: the next read must fail rather than spin.
	err = readFullFD(fds[0], buf)
	assert.Error(t, err)
}
