package core

// Frame is one raw relay payload, already encoded for the wire.
type Frame []byte
