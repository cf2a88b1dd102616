package session

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const (
	cmdReg   = "reg"
	cmdAuth  = "auth"
	cmdQueue = "queue"
	cmdMove  = "move"

	stateError = "error"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// request holds the known fields of a command. A field of the wrong type
// decodes to its zero value and is left to the state rules.
type request struct {
	Cmd    string
	UserID string
	Pos    json.RawMessage
}

type movePayload struct {
	Pos []int `validate:"required,len=2"`
}

type regResponse struct {
	Cmd     string `json:"cmd"`
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
}

type authResponse struct {
	Cmd     string        `json:"cmd"`
	Success bool          `json:"success"`
	Stats   *entity.Stats `json:"stats"`
}

type queueResponse struct {
	Cmd     string `json:"cmd"`
	Success bool   `json:"success"`
}

type errorResponse struct {
	State string `json:"state"`
}

// decodeRequest fails with apperror.ErrProtocol on anything but an object carrying cmd.
func decodeRequest(line []byte) (*request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrProtocol, err)
	}

	rawCmd, ok := fields["cmd"]
	if !ok || string(rawCmd) == "null" {
		return nil, fmt.Errorf("%w: missing cmd", apperror.ErrProtocol)
	}

	return &request{
		Cmd:    stringField(rawCmd),
		UserID: stringField(fields["user_id"]),
		Pos:    fields["pos"],
	}, nil
}

// stringField returns "" for absent or non-string values.
func stringField(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}

	return value
}

// decodeMove returns the target cell of a move command.
func decodeMove(raw json.RawMessage) (int, int, error) {
	var payload movePayload
	if err := json.Unmarshal(raw, &payload.Pos); err != nil {
		return 0, 0, fmt.Errorf("failed to decode pos: %w", err)
	}

	if err := validate.Struct(payload); err != nil {
		return 0, 0, fmt.Errorf("invalid pos: %w", err)
	}

	return payload.Pos[0], payload.Pos[1], nil
}
