package sim

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPairReadWrite(t *testing.T) {
	a, b := Pair()
	n, err := a.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = b.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestReadTimeout(t *testing.T) {
	a, _ := Pair()
	require.NoError(t, a.SetReadTimeout(10*time.Millisecond))
	start := time.Now()
	n, err := a.Read(make([]byte, 4))
	require.NoError(t, err)
	require.Zero(t, n)
	require.True(t, time.Since(start) >= 10*time.Millisecond)
}

func TestReadWakesOnWrite(t *testing.T) {
	a, b := Pair()
	resultCh := make(chan string, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := b.Read(buf)
		resultCh <- string(buf[:n])
	}()
	time.Sleep(5 * time.Millisecond)
	a.Write([]byte("x"))
	select {
	case s := <-resultCh:
		require.Equal(t, "x", s)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("read not woken")
	}
}

func TestClose(t *testing.T) {
	a, b := Pair()
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 1))
		errCh <- err
	}()
	require.NoError(t, b.Close())
	select {
	case err := <-errCh:
		require.Equal(t, io.EOF, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("read not unblocked")
	}
	_, err := a.Write([]byte("x"))
	require.Equal(t, io.ErrClosedPipe, err)
	_, err = b.Write([]byte("x"))
	require.Equal(t, io.ErrClosedPipe, err)
}

func TestEcho(t *testing.T) {
	a, b := Pair()
	go Echo(b)
	defer b.Close()
	a.Write([]byte("ping"))
	require.NoError(t, a.SetReadTimeout(500*time.Millisecond))
	buf := make([]byte, 8)
	var got []byte
	for len(got) < 4 {
		n, err := a.Read(buf)
		require.NoError(t, err)
		require.NotZero(t, n)
		got = append(got, buf[:n]...)
	}
	require.Equal(t, "ping", string(got))
}
