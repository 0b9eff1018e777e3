package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pagenotes/notehub/internal/notestore"
)

var (
	// ErrBridgeTimeout means the remote side did not answer in time. The
	// caller must not assume the operation did not happen: it may have
	// committed with only the response lost.
	ErrBridgeTimeout = errors.New("bridge timeout")
	ErrClosed        = errors.New("bridge closed")
)

const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpList   = "list"
	OpPages  = "pages"

	EventChanged = "changed"
)

// Request is the {operation, payload} frame a context sends to the
// privileged side.
type Request struct {
	ID      string `json:"id"`
	Op      string `json:"op"`
	PageKey string `json:"pageKey,omitempty"`
	Text    string `json:"text,omitempty"`
	NoteID  string `json:"noteId,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	ID      string           `json:"id"`
	OK      bool             `json:"ok"`
	Note    *notestore.Note  `json:"note,omitempty"`
	Notes   []notestore.Note `json:"notes,omitempty"`
	Pages   []string         `json:"pages,omitempty"`
	Removed *bool            `json:"removed,omitempty"`
	Error   *ErrorInfo       `json:"error,omitempty"`
}

// EventFrame is the {event, pageKey} broadcast pushed to every other live
// context after a successful mutation. An empty pageKey means the change
// could not be attributed to one page; subscribers re-list their own.
type EventFrame struct {
	Event   string `json:"event"`
	PageKey string `json:"pageKey"`
}

const requestSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["id", "op"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"op": {"enum": ["add", "remove", "list", "pages"]},
		"pageKey": {"type": "string"},
		"text": {"type": "string"},
		"noteId": {"type": "string"}
	},
	"additionalProperties": false
}`

var (
	requestSchemaOnce sync.Once
	requestSchema     *jsonschema.Schema
	requestSchemaErr  error
)

func compiledRequestSchema() (*jsonschema.Schema, error) {
	requestSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(requestSchemaJSON))
		if err != nil {
			requestSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("bridge-request.json", doc); err != nil {
			requestSchemaErr = err
			return
		}
		requestSchema, requestSchemaErr = compiler.Compile("bridge-request.json")
	})
	return requestSchema, requestSchemaErr
}

// ValidateRequestFrame checks a raw request frame against the wire schema
// before it is dispatched, so a malformed context cannot reach the engine.
func ValidateRequestFrame(raw []byte) error {
	schema, err := compiledRequestSchema()
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid json frame: %w", err)
	}
	return schema.Validate(instance)
}
