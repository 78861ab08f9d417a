// Package network implements both ends of the chat connection.
//
// Client owns one TCP connection to the server. A receive pump reads and
// decrypts frames and hands decoded replies to a single dispatcher
// goroutine, so SessionObserver callbacks never run concurrently. A send
// pump drains a FIFO queue filled by SendAsync. When the connection drops
// the client notifies the observer and a reconnect supervisor dials again
// with capped exponential backoff; the supervisor installs fresh pumps once
// the old ones have exited.
//
// Server accepts connections and runs one Session per connection. A
// session reads requests, dispatches them against an AccountStore and
// writes each reply synchronously.
package network
