package parser

import "errors"

// ErrNotAnEvent is returned by EventName/EventArg when Data isn't the
// [name, arg?] shape spec.md §3 requires for EVENT/BINARY_EVENT packets.
var ErrNotAnEvent = errors.New("socket.io: packet data is not an event tuple")

// EventName extracts the event name from an EVENT/BINARY_EVENT packet's
// Data, which must be a JSON array whose first element is a string.
func EventName(data any) (string, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) == 0 {
		return "", ErrNotAnEvent
	}
	name, ok := arr[0].(string)
	if !ok {
		return "", ErrNotAnEvent
	}
	return name, nil
}

// EventArg extracts the single argument following the event name, or nil
// if the tuple carries no argument.
func EventArg(data any) (any, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) == 0 {
		return nil, ErrNotAnEvent
	}
	if len(arr) < 2 {
		return nil, nil
	}
	return arr[1], nil
}

// NewEventData builds the [name, arg] tuple used as EVENT/ACK packet Data.
// If arg is nil, the tuple is [name] only.
func NewEventData(name string, arg any) []any {
	if arg == nil {
		return []any{name}
	}
	return []any{name, arg}
}
