package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// MalformedPayload indicates a stored note is not valid JSON or has no schema tag
	MalformedPayload ErrorCode = "MALFORMED_PAYLOAD"
	// UnknownSchemaVersion indicates a schema tag with no registered migration path
	UnknownSchemaVersion ErrorCode = "UNKNOWN_SCHEMA_VERSION"
	// WriteConflict indicates an annotation already exists for the commit
	WriteConflict ErrorCode = "WRITE_CONFLICT"
	// ValidationFailed indicates structurally invalid annotation input
	ValidationFailed ErrorCode = "VALIDATION_FAILED"
	// AnnotationNotFound indicates no annotation exists for the commit
	AnnotationNotFound ErrorCode = "ANNOTATION_NOT_FOUND"
	// CommitNotFound indicates the commit or ref does not resolve
	CommitNotFound ErrorCode = "COMMIT_NOT_FOUND"
	// BackendUnavailable indicates git itself failed or is missing
	BackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// SyncDiverged indicates the local and remote notes refs have diverged
	SyncDiverged ErrorCode = "SYNC_DIVERGED"
	// KnowledgeNotFound indicates no knowledge entry with the given id
	KnowledgeNotFound ErrorCode = "KNOWLEDGE_NOT_FOUND"
	// ScopeInvalid indicates an unusable query scope (bad path, inverted range)
	ScopeInvalid ErrorCode = "SCOPE_INVALID"
	// ConfigInvalid indicates a config file that fails validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// Drilldown represents a suggested follow-up query
type Drilldown struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// LoreError represents a lore error with code, message, and suggestions
type LoreError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	Drilldowns     []Drilldown `json:"drilldowns,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewLoreError creates a new LoreError
func NewLoreError(code ErrorCode, message string, cause error, suggestedFixes []FixAction, drilldowns []Drilldown) *LoreError {
	return &LoreError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
		Drilldowns:     drilldowns,
	}
}

// New creates a LoreError with the code's default suggested fixes.
func New(code ErrorCode, message string, cause error) *LoreError {
	return NewLoreError(code, message, cause, GetSuggestedFixes(code), nil)
}

// Error implements the error interface
func (e *LoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *LoreError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *LoreError) WithDetails(details interface{}) *LoreError {
	e.Details = details
	return e
}

// ConflictDetails describes an existing record blocking a write.
type ConflictDetails struct {
	Commit      string `json:"commit"`
	ExistingSum string `json:"existingSum,omitempty"`
	ExpectedSum string `json:"expectedSum,omitempty"`
	WrittenAt   string `json:"writtenAt,omitempty"`
}

// ParseDetails attaches the offending commit to parse/migration failures so
// the command boundary can report which note is broken.
type ParseDetails struct {
	Commit string `json:"commit,omitempty"`
	Schema string `json:"schema,omitempty"`
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	WriteConflict: {
		{
			Type:        RunCommand,
			Command:     "lore annotate ${commit} --force",
			Safe:        false,
			Description: "Overwrite the existing annotation",
		},
		{
			Type:        RunCommand,
			Command:     "lore correct ${commit} --field ... --new ...",
			Safe:        true,
			Description: "Record the change additively instead of overwriting",
		},
	},
	BackendUnavailable: {
		{
			Type:        RunCommand,
			Command:     "lore doctor",
			Safe:        true,
			Description: "Check git availability and notes configuration",
		},
	},
	SyncDiverged: {
		{
			Type:        RunCommand,
			Command:     "lore sync --fetch",
			Safe:        true,
			Description: "Fetch remote notes into the staging ref and inspect the divergence",
		},
	},
	UnknownSchemaVersion: {
		{
			Type:        RunCommand,
			Command:     "lore migrate --stats",
			Safe:        true,
			Description: "Report schema versions across the corpus",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "lore init",
			Safe:        true,
			Description: "Regenerate a default config",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
