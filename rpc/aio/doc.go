// Package aio provides the readiness-driven socket layer of the RPC system. Sockets never
// block the caller: reads return whatever is queued, writes take what the OS accepts and
// raise write interest for the rest.
//
// The package focuses on:
//   - Turning OS readiness into operations (OpConnect, OpRead, OpWrite, OpAccept, OpClose)
//     delivered to exactly one listener per socket
//   - Backpressure through write interest instead of blocking writes
//   - Bounding the number of handlers that run at the same time
//
// Key Components:
//
//   - Reactor: Registry of all open channels. Readiness is detected by the Go netpoller
//     through syscall.RawConn, the reactor decides when the handlers run and how many
//     of them run at once. Close delivers OpClose to every registered channel.
//
//   - Socket: One TCP connection. Each socket has a single dispatcher goroutine consuming
//     its event queue, so the listener is never invoked concurrently with itself. Read
//     and write watchers wait on the netpoller and hand readiness to the dispatcher.
//
//   - ServerSocket: Listening socket that queues accepted connections and announces them
//     with OpAccept.
//
//   - InputStream / OutputStream: Buffered views of a socket used by the connection
//     templates. OutputStream queues whole writes in order and flushes on OpWrite.
//
// Raw non-blocking reads and writes use golang.org/x/sys/unix and are only available on
// unix platforms.
package aio
