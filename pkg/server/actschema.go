package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/crystal-mush/graphworld/pkg/router"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/act.schema.json
var actSchemaJSON string

var actSchema = jsonschema.MustCompileString("act.schema.json", actSchemaJSON)

// ActRequest is one act arriving over REST or websocket: a raw command
// line, or a structured action for system narration.
type ActRequest struct {
	Command string         `json:"command,omitempty"`
	Action  *router.Action `json:"action,omitempty"`
	Wait    int            `json:"wait,omitempty"` // Seconds to wait for narration
}

// ParseAct validates body against the act schema and decodes it.
func ParseAct(body []byte) (*ActRequest, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("act: %w", err)
	}
	if err := actSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("act: %w", err)
	}
	var req ActRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("act: %w", err)
	}
	return &req, nil
}
