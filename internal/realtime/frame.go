package realtime

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// FrameKind discriminates the three frame shapes on the wire.
type FrameKind string

const (
	KindInvoke FrameKind = "invoke"
	KindResult FrameKind = "result"
	KindEvent  FrameKind = "event"
)

// Procedures callable on the messaging backend.
const (
	ProcSendMessage         = "SendMessage"
	ProcUpdateMessageStatus = "UpdateMessageStatus"
)

// Push events emitted by the messaging backend.
const (
	EventReceivePrivateMessage = "ReceivePrivateMessage"
	EventUpdatedMessage        = "UpdatedMessage"
	EventUpdateUser            = "UpdateUser"
	EventSendPrivateNoti       = "SendPrivateNoti"
)

// Frame is a single JSON text frame exchanged with the backend.
type Frame struct {
	Kind    FrameKind       `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (f Frame) Validate() error {
	switch f.Kind {
	case KindInvoke:
		if f.ID == "" {
			return errors.New("invoke frame missing id")
		}
		if f.Target == "" {
			return errors.New("invoke frame missing target")
		}
	case KindResult:
		if f.ID == "" {
			return errors.New("result frame missing id")
		}
	case KindEvent:
		if f.Target == "" {
			return errors.New("event frame missing target")
		}
	case "":
		return errors.New("missing kind")
	default:
		return fmt.Errorf("unsupported kind: %s", f.Kind)
	}
	return nil
}

// newFrameID returns a ULID so invoke ids sort by issue time in logs.
func newFrameID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
