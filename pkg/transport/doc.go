// Package transport implements a pipe backend on top of an asynchronous
// UART capability.
package transport

// Received data is written by the UART directly into fixed size buffers
// drawn from an Arena. Each buffer is reference counted: the UART holds
// one reference while filling it, and every descriptor queued for the
// consumer holds another one. A buffer returns to the Arena when the last
// reference is dropped, regardless of which side drops it.
//
// Outbound bytes are staged in a Ring. At most one transmit is submitted
// to the UART at a time and the submitter owns the Ring until completion
// is reported. Bytes not confirmed as sent stay staged across close and
// are resumed on the next Open.
//
// Driver events are handled synchronously in HandleEvent, which never
// blocks. Notifications to the pipe consumer are moved to a
// framework.WorkQueue so consumer code never runs in driver context.
