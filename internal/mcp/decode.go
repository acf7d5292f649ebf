package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/playbook/internal/errors"
)

// decode unmarshals tool arguments into a typed request.
// Malformed arguments come back as INVALID_REQUEST.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, errors.NewInvalidRequest("marshal args: " + err.Error())
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, errors.NewInvalidRequest("unmarshal args: " + err.Error())
	}
	return out, nil
}
