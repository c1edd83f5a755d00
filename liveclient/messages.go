package liveclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"mapview/models"

	"github.com/rs/zerolog/log"
)

// Message is one decoded server payload: a LogMessage or a StateUpdate.
type Message interface {
	isMessage()
}

// LogMessage is a diagnostic line from the server. It has no effect on the view.
type LogMessage struct {
	Text string
}

// StateUpdate carries a new map and robot pose to draw.
type StateUpdate struct {
	Frame models.Frame
}

func (LogMessage) isMessage()  {}
func (StateUpdate) isMessage() {}

// ErrUnrecognized is returned for well-formed json that is neither a log nor a state update.
var ErrUnrecognized = errors.New("unrecognized message shape")

// ErrBadCoord is returned for a center or head that is not a [row, col] pair.
var ErrBadCoord = errors.New("coordinate is not a [row, col] pair")

// envelope is the server's wire format. The map, center and head fields are
// themselves json documents encoded as strings, so they are decoded twice.
type envelope struct {
	Log    *string `json:"log"`
	Map    *string `json:"map"`
	Center *string `json:"center"`
	Head   *string `json:"head"`
}

// Decode classifies a raw payload. A payload with a "log" field is a LogMessage;
// one with a "map" field is a StateUpdate, whose center and head are optional.
// The path is never populated from the wire.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case env.Log != nil:
		return LogMessage{Text: *env.Log}, nil
	case env.Map != nil:
		update, err := decodeStateUpdate(&env)
		if err != nil {
			return nil, err
		}
		return update, nil
	default:
		return nil, ErrUnrecognized
	}
}

func decodeStateUpdate(env *envelope) (update StateUpdate, err error) {
	if err = json.Unmarshal([]byte(*env.Map), &update.Frame.Grid); err != nil {
		err = fmt.Errorf("decode map: %w", err)
		return
	}
	if update.Frame.Center, err = decodeCoord("center", env.Center); err != nil {
		return
	}
	if update.Frame.Head, err = decodeCoord("head", env.Head); err != nil {
		return
	}
	// A pose off the map loses the robot, not the map.
	if err = update.Frame.Validate(); errors.Is(err, models.ErrOutOfBounds) {
		log.Debug().Err(err).Msg("pose outside map, dropping robot")
		update.Frame.Center, update.Frame.Head = nil, nil
		err = nil
	}
	return
}

// decodeCoord returns nil for an absent field or an encoded json null.
func decodeCoord(field string, encoded *string) (*models.Coord, error) {
	if encoded == nil {
		return nil, nil
	}
	var raw []int
	if err := json.Unmarshal([]byte(*encoded), &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	if raw == nil {
		return nil, nil
	}
	if len(raw) != len(models.Coord{}) {
		return nil, fmt.Errorf("decode %s: %d elements, want %d: %w", field, len(raw), len(models.Coord{}), ErrBadCoord)
	}
	return &models.Coord{raw[0], raw[1]}, nil
}
