// Package protocol defines the Stage Protocol (C13): the framed
// request/response envelope shared by the daemon's Unix-socket API
// and the embedder child's stdin/stdout pipe. It generalizes the
// teacher's daemon/protocol.go JSON-RPC envelope (request/response
// structs, correlation id field) and internal/async's progress
// snapshot fields into one typed message family.
package protocol

import (
	"encoding/json"
	"time"
)

// Request is one correlation-id-tagged request frame. Both the daemon
// socket transport and the embedder child's stdin transport use this
// same envelope shape; only the Method/Params vocabulary differs.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the matching reply frame, correlated back to a Request
// by ID. Exactly one of Result or Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error mirrors the JSON-RPC error shape the teacher's daemon already
// speaks, reused here so both transports share one wire format.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Stage identifies a point in the Lifecycle State Machine's sequence
// that a StageProgress event may report.
type Stage string

const (
	StageUninitialized  Stage = "uninitialized"
	StageStartingChild  Stage = "starting_sidecar"
	StageChildReady     Stage = "sidecar_ready"
	StageInitializingDB Stage = "initializing_db"
	StageDBReady        Stage = "db_ready"
	StageLoadingFiles   Stage = "loading_files"
	StageScanningFolder Stage = "scanning_folders"
	StageReady          Stage = "ready"
	StageError          Stage = "error"
)

// StageProgress is the typed event emitted whenever the lifecycle
// advances, or whenever the indexing pipeline makes progress within
// the ready state. Fields beyond Stage are optional and populated
// only when relevant, mirroring the teacher's tolerant status-struct
// decoding (internal/async's status snapshot, a single struct holding
// every progress dimension rather than a union type).
type StageProgress struct {
	Stage      Stage  `json:"stage"`
	Message    string `json:"message,omitempty"`
	FolderPath string `json:"folder_path,omitempty"`
	FilePath   string `json:"file_path,omitempty"`

	// Progress is 0-100. No publisher sets it: the file-hash reload
	// reports FilesProcessed/FilesTotal instead, so it is 0 on every
	// event the lifecycle publishes.
	Progress int `json:"progress,omitempty"`

	// Timestamp records when the event was published. Zero on events
	// constructed before this field existed (legacy callers), which
	// callers should treat the same as "unknown".
	Timestamp time.Time `json:"timestamp,omitempty"`

	FilesTotal     int `json:"files_total,omitempty"`
	FilesProcessed int `json:"files_processed,omitempty"`
	FilesFailed    int `json:"files_failed,omitempty"`

	QueueDepth int `json:"queue_depth,omitempty"`

	Error string `json:"error,omitempty"`
}

// UnmarshalJSON decodes a StageProgress frame. Besides the current
// {"stage": "..."} shape, it also accepts the historical {"type": "..."}
// variant some older publishers emitted for the same field, so a
// "ready" event is recognized regardless of which key name produced
// it. The "worker ready" flag must only ever be set from the decoded
// Stage value, never inferred some other way.
func (sp *StageProgress) UnmarshalJSON(data []byte) error {
	type alias StageProgress
	aux := struct {
		Type Stage `json:"type,omitempty"`
		*alias
	}{alias: (*alias)(sp)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if sp.Stage == "" && aux.Type != "" {
		sp.Stage = aux.Type
	}
	return nil
}

// Encode marshals v into a Request's Params field.
func Encode(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// Decode unmarshals a Request's Params (or a Response's Result) into v.
func Decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
