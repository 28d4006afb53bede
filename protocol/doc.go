package protocol

// This package implements encoding and decoding of the frames that brewd
// clients and servers exchange.
//
// The protocol aims to be
//
// - tiny, a whole exchange is three bytes
// - fixed size, so neither side ever has to search for a delimiter
// - self checking, every frame carries an even parity bit
//
// - `Request` - A client order for a cup of some flavor and volume.
// - `Response` - The server's verdict on that order.
//
// A connection carries exactly one request followed by exactly one response,
// after which the server closes it.
//
// === Request frame
//
// Two bytes, low byte first. Bit 0 is the least significant bit.
//
//   ```
//    15 | 14 ... 10 | 9 ... 1 | 0
//     0 |  flavor   | volume  | parity
//   ```
//
// - volume is 9 bits, 0-511 ml
// - flavor is a 5 bit index into the flavor table, only 0-10 are defined
// - bit 15 is always sent as zero
//
// === Response frame
//
// One byte.
//
//   ```
//    7 ... 2 | 1    | 0
//    payload | flag | parity
//   ```
//
// When flag is 0 the order was accepted and payload is the wait in seconds,
// clamped to 63. A payload of 63 means "63 seconds or more".
//
// When flag is 1 the order was rejected, bits 2-3 carry the reason and
// bits 4-7 are zero.
//
//   0 - parity fault at the server
//   1 - not enough water
//   2 - no room left for cups
//   3 - both
//
// === Parity
//
// Parity is even and covers every bit of the frame above bit 0, the same
// range on encode and decode. The parity bit is the XOR of those bits, so
// any single flipped bit, including the parity bit itself, makes the frame
// fail verification.
//
