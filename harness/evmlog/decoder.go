package evmlog

import (
	"encoding/binary"
	"fmt"

	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// DecodeError reports a record that could not be decoded. Offset is the byte
// position within the record where decoding stopped.
type DecodeError struct {
	Group        int
	Record       int
	Offset       int
	Discriminant byte
	Reason       string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode group %d record %d: %s at offset %d (discriminant 0x%02x)",
		e.Group, e.Record, e.Reason, e.Offset, e.Discriminant)
}

// Code classifies decode failures for the harness error taxonomy.
func (e *DecodeError) Code() harnesserrors.ErrorCode {
	return harnesserrors.ErrCodeDecode
}

// Decode decodes every record of every group, preserving order. The first
// malformed record aborts decoding.
func Decode(raw RawLog) (Log, error) {
	out := Log{Groups: make([]Group, 0, len(raw.Groups))}
	for gi, rg := range raw.Groups {
		group := Group{Index: rg.Index, Records: make([]Record, 0, len(rg.Records))}
		for ri, data := range rg.Records {
			rec, err := DecodeRecord(data)
			if err != nil {
				if de, ok := err.(*DecodeError); ok {
					de.Group = gi
					de.Record = ri
				}
				return Log{}, err
			}
			group.Records = append(group.Records, rec)
		}
		out.Groups = append(out.Groups, group)
	}
	return out, nil
}

// DecodeRecord decodes a single record.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Offset: 0, Reason: "empty record"}
	}

	tag := data[0]
	switch tag {
	case TagReturn:
		return decodeReturn(data)
	case TagEvent:
		return decodeEvent(data)
	default:
		return nil, &DecodeError{Offset: 0, Discriminant: tag, Reason: "unknown discriminant"}
	}
}

func decodeReturn(data []byte) (Record, error) {
	if len(data) < 2 {
		return nil, &DecodeError{Offset: 1, Discriminant: TagReturn, Reason: "truncated status code"}
	}
	ret := Return{Status: data[1]}
	if len(data) > 2 {
		ret.Data = append([]byte(nil), data[2:]...)
	}
	return ret, nil
}

func decodeEvent(data []byte) (Record, error) {
	pos := 1
	if len(data) < pos+AddressLength {
		return nil, &DecodeError{Offset: pos, Discriminant: TagEvent, Reason: "truncated emitter address"}
	}
	var ev Event
	copy(ev.Emitter[:], data[pos:pos+AddressLength])
	pos += AddressLength

	if len(data) < pos+topicCountLength {
		return nil, &DecodeError{Offset: pos, Discriminant: TagEvent, Reason: "truncated topic count"}
	}
	count := binary.LittleEndian.Uint64(data[pos : pos+topicCountLength])
	pos += topicCountLength

	// bound the count by what the record can hold before allocating
	remaining := uint64(len(data) - pos)
	if count > remaining/TopicLength {
		return nil, &DecodeError{
			Offset:       pos,
			Discriminant: TagEvent,
			Reason:       fmt.Sprintf("truncated topics: %d declared, room for %d", count, remaining/TopicLength),
		}
	}

	ev.Topics = make([]Topic, count)
	for i := range ev.Topics {
		copy(ev.Topics[i][:], data[pos:pos+TopicLength])
		pos += TopicLength
	}
	ev.Data = append([]byte{}, data[pos:]...)
	return ev, nil
}
