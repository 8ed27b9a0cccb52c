package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingPutClaimAdvance(t *testing.T) {
	r := NewRing(8)
	require.Equal(t, 5, r.Put([]byte("hello")))
	require.Equal(t, 3, r.Space())
	require.Equal(t, "hel", string(r.Claim(3)))
	require.Equal(t, "hello", string(r.Claim(0)))
	require.Equal(t, 3, r.Advance(3))
	require.Equal(t, "lo", string(r.Claim(0)))

	// wraps around
	require.Equal(t, 6, r.Put([]byte("world!!!")))
	require.Equal(t, 8, r.Len())
	require.Equal(t, 0, r.Space())
	require.Equal(t, "lowor", string(r.Claim(0)))
	require.Equal(t, 5, r.Advance(5))
	require.Equal(t, "ld!", string(r.Claim(0)))
	require.Equal(t, 3, r.Advance(10))
	require.Zero(t, r.Len())
	require.Nil(t, r.Claim(0))
}

func TestRingUnput(t *testing.T) {
	r := NewRing(4)
	r.Put([]byte("ab"))
	n := r.Put([]byte("cdef"))
	require.Equal(t, 2, n)
	r.Unput(n)
	require.Equal(t, "ab", string(r.Claim(0)))
	r.Unput(10)
	require.Zero(t, r.Len())
	require.Equal(t, 4, r.Space())
}

func TestRingReset(t *testing.T) {
	r := NewRing(4)
	r.Put([]byte("abc"))
	r.Advance(2)
	r.Reset()
	require.Zero(t, r.Len())
	require.Equal(t, 4, r.Put([]byte("wxyz")))
	require.Equal(t, "wxyz", string(r.Claim(0)))
}

func TestRxQueue(t *testing.T) {
	a := NewArena(1, 8)
	q := newRxQueue(2)
	b, _ := a.Allocate()
	for i := 0; i < 2; i++ {
		b.Retain()
		require.NoError(t, q.TryPush(Descriptor{Buf: b, Data: b.Bytes()[i : i+1]}))
	}
	require.Equal(t, ErrQueueFull, q.TryPush(Descriptor{Buf: b}))
	require.Equal(t, 2, q.Len())

	d, ok := q.Pop(context.TODO(), false)
	require.True(t, ok)
	require.Same(t, &b.Bytes()[0], &d.Data[0])
	d.Buf.Release()

	require.Equal(t, 1, q.Purge())
	require.Equal(t, 1, b.Refs())
	_, ok = q.Pop(context.TODO(), false)
	require.False(t, ok)
}

func TestRxQueuePopWait(t *testing.T) {
	q := newRxQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := q.Pop(ctx, true)
	require.False(t, ok)

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.TryPush(Descriptor{Data: []byte("x")})
	}()
	d, ok := q.Pop(context.Background(), true)
	require.True(t, ok)
	require.Equal(t, "x", string(d.Data))
}
