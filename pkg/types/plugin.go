package types

import (
	"fmt"
)

var ErrUnknownPlugin = fmt.Errorf("unknown plugin")

// Stage represents when a plugin should be executed
type Stage string

const (
	PreRequest   Stage = "pre_request"
	PostResponse Stage = "post_response"
)

// PluginError is a denial. It is the designed output of a detector and is
// turned into a 403 or 429 by the shield middleware.
type PluginError struct {
	Plugin     string
	StatusCode int
	Message    string
	RetryAfter int
	Err        error
}

type PluginResponse struct {
	StatusCode int
	Message    string
	Headers    map[string][]string
	Metadata   map[string]interface{}
}

func (e *PluginError) Error() string {
	return e.Message
}

func (e *PluginError) Unwrap() error {
	return e.Err
}
