// Package evmlog decodes the records the EVM loader emits as inner
// instructions of a confirmed ledger transaction.
//
// Every record starts with a one-byte discriminant:
//
//	0x06 Return  status(1) [trailing bytes]
//	0x07 Event   emitter(20) topic_count(u64 LE) topics(32*N) data(...)
package evmlog

import (
	"encoding/hex"
	"fmt"
)

const (
	// TagReturn marks the terminal outcome of contract execution.
	TagReturn byte = 0x06

	// TagEvent marks a LOG0..LOG4 emitted by the contract.
	TagEvent byte = 0x07

	AddressLength = 20
	TopicLength   = 32

	topicCountLength = 8
)

// Exit status codes carried by Return records.
const (
	StatusStopped  byte = 0x11 // machine encountered an explicit stop
	StatusReturned byte = 0x12 // machine encountered an explicit return
)

// Kind names a record variant.
type Kind string

const (
	KindReturn Kind = "return"
	KindEvent  Kind = "event"
)

// Address is a 20-byte Ethereum address.
type Address [AddressLength]byte

// Hex returns the 0x-prefixed lowercase encoding.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Topic is one 32-byte indexed log value.
type Topic [TopicLength]byte

// Hex returns the 0x-prefixed lowercase encoding.
func (t Topic) Hex() string {
	return "0x" + hex.EncodeToString(t[:])
}

// Record is a decoded Return or Event.
type Record interface {
	Kind() Kind
}

// Return is the terminal record of an execution.
type Return struct {
	Status byte
	// Data holds any bytes following the status code.
	Data []byte
}

func (Return) Kind() Kind { return KindReturn }

// Event is a log emitted during execution.
type Event struct {
	Emitter Address
	Topics  []Topic
	Data    []byte
}

func (Event) Kind() Kind { return KindEvent }

// Group is the ordered list of records emitted for one top-level instruction.
type Group struct {
	// Index is the position of the top-level instruction the group belongs to.
	Index   int
	Records []Record
}

// Log is the decoded execution log of one transaction.
type Log struct {
	Groups []Group
}

// RecordCount returns the total number of records across all groups.
func (l Log) RecordCount() int {
	n := 0
	for _, g := range l.Groups {
		n += len(g.Records)
	}
	return n
}

// RawGroup carries undecoded record bytes for one inner-instruction group.
type RawGroup struct {
	Index   int
	Records [][]byte
}

// RawLog is the input to Decode.
type RawLog struct {
	Groups []RawGroup
}

// StatusName returns a human readable name for a Return status.
func StatusName(status byte) string {
	switch status {
	case StatusStopped:
		return "stopped"
	case StatusReturned:
		return "returned"
	default:
		return fmt.Sprintf("0x%02x", status)
	}
}
