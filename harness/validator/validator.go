// Package validator checks decoded execution logs against expected event
// shapes and terminal status codes.
package validator

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// Field names reported by ValidationError.
const (
	FieldGroupCount  = "group count"
	FieldRecordCount = "record count"
	FieldRecordKind  = "record kind"
	FieldStatusCode  = "status code"
	FieldEmitter     = "emitter"
	FieldTopicCount  = "topic count"
	FieldDataLength  = "data length"
)

// FieldTopic names the i-th topic.
func FieldTopic(i int) string { return "topic[" + strconv.Itoa(i) + "]" }

// FieldData names a named data field.
func FieldData(name string) string { return "data." + name }

// ValidationError names the first field that did not match.
type ValidationError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: expected %s, actual %s", e.Field, e.Expected, e.Actual)
}

// Code classifies validation failures for the harness error taxonomy.
func (e *ValidationError) Code() harnesserrors.ErrorCode {
	return harnesserrors.ErrCodeValidation
}

func mismatch(field string, expected, actual interface{}) error {
	return &ValidationError{Field: field, Expected: render(expected), Actual: render(actual)}
}

func render(v interface{}) string {
	switch x := v.(type) {
	case byte:
		return fmt.Sprintf("0x%02x", x)
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case evmlog.Address:
		return x.Hex()
	case evmlog.Topic:
		return x.Hex()
	case evmlog.Kind:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// DataField is a fixed-width slice of event data.
type DataField struct {
	Name   string
	Offset int
	Value  []byte
}

// EventShape describes an expected event. Topics are compared in order up to
// len(Topics); TopicCount is always compared.
type EventShape struct {
	Emitter    evmlog.Address
	TopicCount int
	Topics     []evmlog.Topic
	Fields     []DataField
}

// CheckShape compares ev with shape field by field.
func CheckShape(ev evmlog.Event, shape EventShape) error {
	if ev.Emitter != shape.Emitter {
		return mismatch(FieldEmitter, shape.Emitter, ev.Emitter)
	}
	if len(ev.Topics) != shape.TopicCount {
		return mismatch(FieldTopicCount, shape.TopicCount, len(ev.Topics))
	}
	for i, want := range shape.Topics {
		if i >= len(ev.Topics) {
			break
		}
		if ev.Topics[i] != want {
			return mismatch(FieldTopic(i), want, ev.Topics[i])
		}
	}
	for _, f := range shape.Fields {
		end := f.Offset + len(f.Value)
		if len(ev.Data) < end {
			return mismatch(FieldDataLength, fmt.Sprintf(">= %d", end), len(ev.Data))
		}
		if got := ev.Data[f.Offset:end]; string(got) != string(f.Value) {
			return mismatch(FieldData(f.Name), f.Value, got)
		}
	}
	return nil
}

// expectEventThenReturn checks the group layout and terminal status and
// returns the event of the selected group.
func expectEventThenReturn(l evmlog.Log, groupCount, groupIndex int, status byte) (evmlog.Event, error) {
	if len(l.Groups) != groupCount {
		return evmlog.Event{}, mismatch(FieldGroupCount, groupCount, len(l.Groups))
	}
	if groupIndex < 0 || groupIndex >= len(l.Groups) {
		return evmlog.Event{}, mismatch(FieldGroupCount, fmt.Sprintf("> %d", groupIndex), len(l.Groups))
	}
	records := l.Groups[groupIndex].Records
	if len(records) != 2 {
		return evmlog.Event{}, mismatch(FieldRecordCount, 2, len(records))
	}

	ev, ok := records[0].(evmlog.Event)
	if !ok {
		return evmlog.Event{}, mismatch(FieldRecordKind, evmlog.KindEvent, records[0].Kind())
	}
	ret, ok := records[1].(evmlog.Return)
	if !ok {
		return evmlog.Event{}, mismatch(FieldRecordKind, evmlog.KindReturn, records[1].Kind())
	}
	if ret.Status != status {
		return evmlog.Event{}, mismatch(FieldStatusCode, status, ret.Status)
	}
	return ev, nil
}

// AddressCreation is the expected outcome of a factory deploying a contract.
// Zero GroupCount means 1.
type AddressCreation struct {
	Factory    evmlog.Address
	Created    evmlog.Address
	GroupCount int
	GroupIndex int
}

// CheckAddressCreation verifies an Address(address) event from the factory
// followed by an explicit stop.
func CheckAddressCreation(l evmlog.Log, exp AddressCreation) error {
	groupCount := exp.GroupCount
	if groupCount == 0 {
		groupCount = 1
	}
	ev, err := expectEventThenReturn(l, groupCount, exp.GroupIndex, evmlog.StatusStopped)
	if err != nil {
		return err
	}
	return CheckShape(ev, EventShape{
		Emitter:    exp.Factory,
		TopicCount: 1,
		Topics:     []evmlog.Topic{evmlog.Topic(ethtx.EventSignatureHash(ethtx.EventAddress))},
		Fields:     []DataField{{Name: "address", Offset: 0, Value: padAddress(exp.Created)}},
	})
}

// Transfer is the expected outcome of an ERC20 transfer or mint.
type Transfer struct {
	Token  evmlog.Address
	From   evmlog.Address
	To     evmlog.Address
	Amount *big.Int
	// Status is StatusReturned for transfer() and StatusStopped for mint().
	Status byte
}

// CheckTransfer verifies a Transfer(address,address,uint256) event. The
// indexed from and to follow the signature topic; the amount is the first
// data word.
func CheckTransfer(l evmlog.Log, exp Transfer) error {
	ev, err := expectEventThenReturn(l, 1, 0, exp.Status)
	if err != nil {
		return err
	}
	amount := exp.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	return CheckShape(ev, EventShape{
		Emitter:    exp.Token,
		TopicCount: 3,
		Topics: []evmlog.Topic{
			evmlog.Topic(ethtx.EventSignatureHash(ethtx.EventTransfer)),
			evmlog.Topic(padAddress(exp.From)),
			evmlog.Topic(padAddress(exp.To)),
		},
		Fields: []DataField{{Name: "amount", Offset: 0, Value: common.BigToHash(amount).Bytes()}},
	})
}

// ExtractSingleTopicData returns the first data word of a one-topic event
// from emitter that ended with an explicit stop.
func ExtractSingleTopicData(l evmlog.Log, emitter evmlog.Address) ([32]byte, error) {
	var out [32]byte
	ev, err := expectEventThenReturn(l, 1, 0, evmlog.StatusStopped)
	if err != nil {
		return out, err
	}
	if err := CheckShape(ev, EventShape{Emitter: emitter, TopicCount: 1}); err != nil {
		return out, err
	}
	if len(ev.Data) < len(out) {
		return out, mismatch(FieldDataLength, fmt.Sprintf(">= %d", len(out)), len(ev.Data))
	}
	copy(out[:], ev.Data[:len(out)])
	return out, nil
}

func padAddress(a evmlog.Address) []byte {
	return common.LeftPadBytes(a[:], 32)
}
