// Package op provides constants for the commands understood by the pairgen
// issuing server.
package op

import "strings"

// An Op is a server command. Command names are case-insensitive on the wire.
type Op string

const (
	Next      Op = "next"
	Remaining Op = "remaining"
	Reset     Op = "reset"
	Info      Op = "info"
	Ping      Op = "ping"
	Quit      Op = "quit"
)

// New creates an Op from wire data. It does not validate that the operation is
// supported.
func New(op []byte) Op {
	return Op(strings.ToLower(string(op)))
}
