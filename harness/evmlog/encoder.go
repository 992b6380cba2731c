package evmlog

import "encoding/binary"

// EncodeReturn produces the wire form of a Return record.
func EncodeReturn(r Return) []byte {
	out := make([]byte, 0, 2+len(r.Data))
	out = append(out, TagReturn, r.Status)
	return append(out, r.Data...)
}

// EncodeEvent produces the wire form of an Event record.
func EncodeEvent(e Event) []byte {
	out := make([]byte, 0, 1+AddressLength+topicCountLength+len(e.Topics)*TopicLength+len(e.Data))
	out = append(out, TagEvent)
	out = append(out, e.Emitter[:]...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(e.Topics)))
	for _, t := range e.Topics {
		out = append(out, t[:]...)
	}
	return append(out, e.Data...)
}

// Encode produces the wire form of a Return or Event.
func Encode(r Record) []byte {
	switch rec := r.(type) {
	case Return:
		return EncodeReturn(rec)
	case Event:
		return EncodeEvent(rec)
	default:
		return nil
	}
}

// EncodeLog is the inverse of Decode. It is used to build canned logs.
func EncodeLog(l Log) RawLog {
	raw := RawLog{Groups: make([]RawGroup, 0, len(l.Groups))}
	for _, g := range l.Groups {
		rg := RawGroup{Index: g.Index, Records: make([][]byte, 0, len(g.Records))}
		for _, r := range g.Records {
			rg.Records = append(rg.Records, Encode(r))
		}
		raw.Groups = append(raw.Groups, rg)
	}
	return raw
}
