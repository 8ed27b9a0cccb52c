// Package uart defines the asynchronous UART capability consumed by
// transports and a software driver providing it on top of a blocking port.
package uart

// The capability mirrors DMA style UART controllers: reception runs into
// caller supplied buffers with double buffering (EventRxBufRequest), and a
// controller which runs out of buffers disables reception on its own.
// Transmit reads directly from the caller's memory until completion.
//
// Async emulates such a controller with two goroutines per port, which
// play the role of interrupt context: events are delivered from them and
// handlers must not block.
