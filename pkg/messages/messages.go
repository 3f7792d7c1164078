package messages

import (
	"encoding/json"
	"fmt"
)

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 4096
)

type MessageType uint8

// Message types
const (
	MessageTypeClientPing MessageType = iota + 1
	MessageTypeServerPong
	MessageTypeServerGameUpdate
	MessageTypeServerPlayerPosition
	MessageTypeServerPlayerDeath
	MessageTypeServerPlanetPosition
	MessageTypeServerCountdown
	MessageTypeServerBoost
	MessageTypeServerMatchWon
	MessageTypeServerMatchLost
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeClientPing:
		return "ping"
	case MessageTypeServerPong:
		return "pong"
	case MessageTypeServerGameUpdate:
		return "sgu"
	case MessageTypeServerPlayerPosition:
		return "spp"
	case MessageTypeServerPlayerDeath:
		return "spd"
	case MessageTypeServerPlanetPosition:
		return "spl"
	case MessageTypeServerCountdown:
		return "scd"
	case MessageTypeServerBoost:
		return "sbo"
	case MessageTypeServerMatchWon:
		return "smw"
	case MessageTypeServerMatchLost:
		return "sml"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Message represents a generic message for serialization/deserialization
type Message struct {
	ClientID uint32          `json:"clientID"`
	Type     MessageType     `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

// NewMessage builds a Message with the JSON encoding of payload.
// A nil payload produces an empty payload.
func NewMessage(clientID uint32, t MessageType, payload interface{}) (*Message, error) {
	msg := &Message{
		ClientID: clientID,
		Type:     t,
	}
	if payload == nil {
		return msg, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", t, err)
	}
	msg.Payload = b
	return msg, nil
}

// ServerPlayerPosition is sent when a player moves.
type ServerPlayerPosition struct {
	User  string  `json:"user"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Angle float32 `json:"angle"`
}

// ServerPlayerDeath is sent once when a player dies.
type ServerPlayerDeath struct {
	User string `json:"user"`
}

// ServerPlanetPosition is sent when a planet's kinematic state changes.
type ServerPlanetPosition struct {
	ID   string  `json:"id"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	VelX float32 `json:"velX"`
	VelY float32 `json:"velY"`
}

// ServerGameUpdate batches the positions of every player and planet for one server tick.
type ServerGameUpdate struct {
	Timestamp int64                  `json:"timestamp"`
	Players   []ServerPlayerPosition `json:"players"`
	Planets   []ServerPlanetPosition `json:"planets"`
}

// ServerPong answers a client ping. Over WebSocket it is also sent on connect
// so the client learns the ID to use in its UDP pings.
type ServerPong struct {
	ClientID uint32 `json:"clientID"`
}

type ServerCountdown struct {
	Countdown bool `json:"countdown"`
}

type ServerBoost struct {
	Boost int `json:"boost"`
}

// IsServerUpdate returns true for message types that change the match state.
func (t MessageType) IsServerUpdate() bool {
	switch t {
	case MessageTypeServerGameUpdate,
		MessageTypeServerPlayerPosition,
		MessageTypeServerPlayerDeath,
		MessageTypeServerPlanetPosition,
		MessageTypeServerCountdown,
		MessageTypeServerBoost,
		MessageTypeServerMatchWon,
		MessageTypeServerMatchLost:
		return true
	}
	return false
}
