package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame types exchanged over the websocket. Client to server: subscribe,
// unsubscribe. Server to client: event, heartbeat, error.
//
//	{"type":"subscribe","data":{"topic":"badges","token":null}}
//	{"type":"unsubscribe","data":"badges"}
//	{"type":"event","event":"badges","data":{...}}
//	{"type":"heartbeat","ts":"2025-01-02T15:04:05.000000001Z"}
//	{"type":"error","message":"...","detail":"..."}
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameEvent       = "event"
	FrameHeartbeat   = "heartbeat"
	FrameError       = "error"
)

type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	TS      string          `json:"ts,omitempty"`
	Message string          `json:"message,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

// Subscription is the payload of a subscribe frame. Token is null when the
// client has no credential.
type Subscription struct {
	Topic string  `json:"topic"`
	Token *string `json:"token"`
}

func SubscribeFrame(topic string, token *string) Frame {
	data, _ := json.Marshal(Subscription{Topic: topic, Token: token})
	return Frame{Type: FrameSubscribe, Data: data}
}

func UnsubscribeFrame(topic string) Frame {
	data, _ := json.Marshal(topic)
	return Frame{Type: FrameUnsubscribe, Data: data}
}

// EventFrame builds an event frame. A nil payload is sent as JSON null.
func EventFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	return Frame{Type: FrameEvent, Event: event, Data: data}, nil
}

func HeartbeatFrame(now time.Time) Frame {
	return Frame{Type: FrameHeartbeat, TS: now.UTC().Format(time.RFC3339Nano)}
}

func ErrorFrame(message, detail string) Frame {
	return Frame{Type: FrameError, Message: message, Detail: detail}
}

// Subscription decodes the payload of a subscribe frame.
func (f Frame) Subscription() (Subscription, error) {
	var s Subscription
	if f.Type != FrameSubscribe {
		return s, fmt.Errorf("not a subscribe frame: %q", f.Type)
	}
	if err := json.Unmarshal(f.Data, &s); err != nil {
		return s, fmt.Errorf("decoding subscription: %w", err)
	}
	if s.Topic == "" {
		return s, fmt.Errorf("subscription without topic")
	}
	return s, nil
}

// Topic decodes the payload of an unsubscribe frame.
func (f Frame) Topic() (string, error) {
	if f.Type != FrameUnsubscribe {
		return "", fmt.Errorf("not an unsubscribe frame: %q", f.Type)
	}
	var topic string
	if err := json.Unmarshal(f.Data, &topic); err != nil {
		return "", fmt.Errorf("decoding topic: %w", err)
	}
	if topic == "" {
		return "", fmt.Errorf("unsubscribe without topic")
	}
	return topic, nil
}
