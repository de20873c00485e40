package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyType - конверт без типа сообщения
var ErrEmptyType = errors.New("message type is empty")

// Envelope - конверт сообщения {type, payload}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode упаковывает сообщение в JSON конверт
func Encode(msgType string, payload interface{}) ([]byte, error) {
	if msgType == "" {
		return nil, ErrEmptyType
	}
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации %s: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode разбирает конверт; payload остаётся сырым
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("ошибка разбора конверта: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrEmptyType
	}
	return env, nil
}

// DecodePayload разбирает payload в out. Пустой payload оставляет out нетронутым.
func (e Envelope) DecodePayload(out interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", e.Type, err)
	}
	return nil
}
