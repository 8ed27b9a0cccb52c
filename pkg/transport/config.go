package transport

import (
	"fmt"
	"time"
)

const (
	wordSize = 4
	// per buffer bookkeeping carved out of the pool, the reference count.
	refHeaderSize = 4
)

// Config defines the transport sizing.
type Config struct {
	// RxPoolSize is the total bytes of receive buffers, divided evenly
	// into RxBufferCount buffers.
	RxPoolSize    int `yaml:"rx-pool-size"`
	RxBufferCount int `yaml:"rx-buffers"`
	// TxBufferSize is the capacity of the transmit staging ring.
	TxBufferSize int `yaml:"tx-buffer-size"`
	// RxQueueDepth is the maximum received chunks not yet read.
	RxQueueDepth int `yaml:"rx-queue-depth"`
	// RxIdleTimeout flushes received bytes after the line is idle.
	RxIdleTimeout time.Duration `yaml:"rx-idle-timeout"`
	// TxTimeout aborts a transmit taking too long, 0 for no timeout.
	TxTimeout time.Duration `yaml:"tx-timeout"`
}

// DefaultConfig returns the default sizing.
func DefaultConfig() Config {
	return Config{
		RxPoolSize:    1024,
		RxBufferCount: 4,
		TxBufferSize:  512,
		RxQueueDepth:  8,
		RxIdleTimeout: 20 * time.Millisecond,
	}
}

// BufferSize is the usable bytes of each receive buffer.
func (c *Config) BufferSize() int {
	if c.RxBufferCount <= 0 {
		return 0
	}
	return ((c.RxPoolSize / c.RxBufferCount) &^ (wordSize - 1)) - refHeaderSize
}

// Validate checks the config.
func (c *Config) Validate() error {
	switch {
	case c.RxBufferCount <= 0:
		return fmt.Errorf("%w: rx buffer count %d", ErrInvalidConfig, c.RxBufferCount)
	case c.BufferSize() <= 0:
		return fmt.Errorf("%w: rx pool size %d too small for %d buffers",
			ErrInvalidConfig, c.RxPoolSize, c.RxBufferCount)
	case c.TxBufferSize <= 0:
		return fmt.Errorf("%w: tx buffer size %d", ErrInvalidConfig, c.TxBufferSize)
	case c.RxQueueDepth <= 0:
		return fmt.Errorf("%w: rx queue depth %d", ErrInvalidConfig, c.RxQueueDepth)
	case c.RxIdleTimeout < 0 || c.TxTimeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
