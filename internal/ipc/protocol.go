package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Commands understood by the control socket.
const (
	CommandOutputs  = "outputs"
	CommandMonitors = "monitors"
	CommandWindows  = "windows"
	CommandClients  = "clients"
	CommandRescan   = "rescan"
	CommandSetMode  = "set-mode"
)

// maxMessageSize bounds a single control message.
const maxMessageSize = 4 << 20

var ErrMessageTooLarge = errors.New("message too large")

// Message field names.
const (
	fieldCommand = "command"
	fieldArgs    = "args"
	fieldOK      = "ok"
	fieldError   = "error"
	fieldResult  = "result"
)

// NewRequest creates a command message. args may be nil.
func NewRequest(command string, args map[string]any) (*structpb.Struct, error) {
	fields := map[string]any{fieldCommand: command}
	if args != nil {
		fields[fieldArgs] = args
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", command, err)
	}
	return msg, nil
}

// GetCommand extracts the command name and arguments from a request.
func GetCommand(msg *structpb.Struct) (string, map[string]any, error) {
	cmd, ok := msg.GetFields()[fieldCommand]
	if !ok || cmd.GetStringValue() == "" {
		return "", nil, fmt.Errorf("message has no command")
	}
	var args map[string]any
	if v, ok := msg.GetFields()[fieldArgs]; ok {
		args = v.GetStructValue().AsMap()
	}
	return cmd.GetStringValue(), args, nil
}

// NewResultMessage wraps v in a success response. v is converted through
// its JSON form so any type with json tags can be sent.
func NewResultMessage(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	result, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOK:     structpb.NewBoolValue(true),
		fieldResult: result,
	}}, nil
}

// NewErrorMessage creates a new error message
func NewErrorMessage(errMsg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOK:    structpb.NewBoolValue(false),
		fieldError: structpb.NewStringValue(errMsg),
	}}
}

// DecodeResult checks a response and decodes its result into out, which
// may be nil when the result is not needed.
func DecodeResult(msg *structpb.Struct, out any) error {
	fields := msg.GetFields()
	if !fields[fieldOK].GetBoolValue() {
		if e := fields[fieldError].GetStringValue(); e != "" {
			return fmt.Errorf("server error: %s", e)
		}
		return fmt.Errorf("malformed response")
	}
	result, ok := fields[fieldResult]
	if out == nil || !ok {
		return nil
	}

	data, err := result.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// readMessage reads a length-prefixed protobuf message
func readMessage(r io.Reader) (*structpb.Struct, error) {
	// Read message length (4 bytes, big endian)
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// writeMessage writes a length-prefixed protobuf message
func writeMessage(w io.Writer, msg *structpb.Struct) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
