// Package codec implements the wire encoding for the three payloads
// carried on the event bus: Message, Friendship pair, and MessageTag.
// Each record is length-delimited (a 1-byte kind tag + a 4-byte
// big-endian length + the payload) so several records can be
// concatenated into one bus message; NATS already delivers a published
// message atomically, so a single-record publish only ever needs one
// frame, but the framing costs nothing and keeps the wire format open to
// batching later.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/odin-social/timeline-server/internal/model"
)

// Kind tags a wire record.
type Kind uint8

const (
	KindMessage Kind = iota + 1
	KindFriendship
	KindMessageTag
)

const (
	kindLen   = 1
	lengthLen = 4
	headerLen = kindLen + lengthLen
	uuidLen   = 16
	millisLen = 8
)

// Friendship is the decode result for a Friendship wire record: the
// directed pair as published.
type Friendship struct {
	A model.UserID
	B model.UserID
}

// MessageTag is the decode result for a MessageTag wire record.
type MessageTag struct {
	User      model.UserID
	MessageID model.MessageID
}

// EncodeMessage frames a Message record.
func EncodeMessage(m model.Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, &DecodeError{Kind: ErrKindMessage, Err: err}
	}
	payload := make([]byte, 0, uuidLen+millisLen+lengthLen+len(m.Content))
	payload = appendUserID(payload, m.AuthorID)
	payload = binary.BigEndian.AppendUint64(payload, uint64(m.ID.Millis))
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(m.Content)))
	payload = append(payload, m.Content...)
	return frame(KindMessage, payload), nil
}

// EncodeFriendship frames a directed friendship pair.
func EncodeFriendship(a, b model.UserID) ([]byte, error) {
	payload := make([]byte, 0, 2*uuidLen)
	payload = appendUserID(payload, a)
	payload = appendUserID(payload, b)
	return frame(KindFriendship, payload), nil
}

// EncodeMessageTag frames a (user, message id) tag event.
func EncodeMessageTag(user model.UserID, msgID model.MessageID) ([]byte, error) {
	payload := make([]byte, 0, uuidLen+uuidLen+millisLen)
	payload = appendUserID(payload, user)
	payload = appendUserID(payload, msgID.Author)
	payload = binary.BigEndian.AppendUint64(payload, uint64(msgID.Millis))
	return frame(KindMessageTag, payload), nil
}

func frame(kind Kind, payload []byte) []byte {
	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, byte(kind))
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	return out
}

func appendUserID(b []byte, u model.UserID) []byte {
	return append(b, u[:]...)
}

// Decode reads one framed record from the front of data and returns the
// decoded value (a model.Message, a Friendship, or a MessageTag), the
// number of bytes consumed, and an error of type *DecodeError on failure.
func Decode(data []byte) (value any, consumed int, err error) {
	if len(data) < headerLen {
		return nil, 0, &DecodeError{Kind: ErrKindFraming, Err: fmt.Errorf("codec: need %d header bytes, have %d", headerLen, len(data))}
	}
	kind := Kind(data[0])
	length := binary.BigEndian.Uint32(data[kindLen:headerLen])
	total := headerLen + int(length)
	if len(data) < total {
		return nil, 0, &DecodeError{Kind: ErrKindFraming, Err: fmt.Errorf("codec: need %d body bytes, have %d", total-headerLen, len(data)-headerLen)}
	}
	payload := data[headerLen:total]

	switch kind {
	case KindMessage:
		m, err := decodeMessage(payload)
		if err != nil {
			return nil, 0, err
		}
		return m, total, nil
	case KindFriendship:
		f, err := decodeFriendship(payload)
		if err != nil {
			return nil, 0, err
		}
		return f, total, nil
	case KindMessageTag:
		tag, err := decodeMessageTag(payload)
		if err != nil {
			return nil, 0, err
		}
		return tag, total, nil
	default:
		return nil, 0, &DecodeError{Kind: ErrKindFraming, Err: fmt.Errorf("codec: unknown record kind %d", kind)}
	}
}

// DecodeOne decodes exactly one record and errors if trailing bytes
// remain, the common case for a single-record bus message.
func DecodeOne(data []byte) (any, error) {
	v, consumed, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if consumed != len(data) {
		return nil, &DecodeError{Kind: ErrKindFraming, Err: fmt.Errorf("codec: %d trailing bytes after record", len(data)-consumed)}
	}
	return v, nil
}

func decodeMessage(payload []byte) (model.Message, error) {
	if len(payload) < uuidLen+millisLen+lengthLen {
		return model.Message{}, &DecodeError{Kind: ErrKindMessage, Err: fmt.Errorf("codec: message payload too short (%d bytes)", len(payload))}
	}
	author, err := readUserID(payload)
	if err != nil {
		return model.Message{}, &DecodeError{Kind: ErrKindUserID, Err: err}
	}
	rest := payload[uuidLen:]
	millis := int64(binary.BigEndian.Uint64(rest[:millisLen]))
	rest = rest[millisLen:]
	contentLen := binary.BigEndian.Uint32(rest[:lengthLen])
	rest = rest[lengthLen:]
	if uint32(len(rest)) != contentLen {
		return model.Message{}, &DecodeError{Kind: ErrKindMessage, Err: fmt.Errorf("codec: content length mismatch, want %d got %d", contentLen, len(rest))}
	}

	m := model.Message{
		ID:       model.MessageID{Author: author, Millis: millis},
		AuthorID: author,
		Date:     model.MessageID{Author: author, Millis: millis}.Time(),
		Content:  string(rest),
	}
	if err := m.Validate(); err != nil {
		return model.Message{}, &DecodeError{Kind: ErrKindMessage, Err: err}
	}
	return m, nil
}

func decodeFriendship(payload []byte) (Friendship, error) {
	if len(payload) != 2*uuidLen {
		return Friendship{}, &DecodeError{Kind: ErrKindFraming, Err: fmt.Errorf("codec: friendship payload wrong length %d", len(payload))}
	}
	a, err := readUserID(payload)
	if err != nil {
		return Friendship{}, &DecodeError{Kind: ErrKindUserID, Err: err}
	}
	b, err := readUserID(payload[uuidLen:])
	if err != nil {
		return Friendship{}, &DecodeError{Kind: ErrKindUserID, Err: err}
	}
	return Friendship{A: a, B: b}, nil
}

func decodeMessageTag(payload []byte) (MessageTag, error) {
	if len(payload) != uuidLen+uuidLen+millisLen {
		return MessageTag{}, &DecodeError{Kind: ErrKindMessageID, Err: fmt.Errorf("codec: message tag payload wrong length %d", len(payload))}
	}
	user, err := readUserID(payload)
	if err != nil {
		return MessageTag{}, &DecodeError{Kind: ErrKindUserID, Err: err}
	}
	author, err := readUserID(payload[uuidLen:])
	if err != nil {
		return MessageTag{}, &DecodeError{Kind: ErrKindUserID, Err: err}
	}
	millis := int64(binary.BigEndian.Uint64(payload[2*uuidLen:]))
	return MessageTag{User: user, MessageID: model.MessageID{Author: author, Millis: millis}}, nil
}

func readUserID(b []byte) (model.UserID, error) {
	if len(b) < uuidLen {
		return model.UserID{}, fmt.Errorf("codec: need %d bytes for user id, have %d", uuidLen, len(b))
	}
	var u model.UserID
	copy(u[:], b[:uuidLen])
	return u, nil
}
