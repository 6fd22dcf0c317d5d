package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrToolUnknown     = errors.New("tool is not declared for this agent")
	ErrToolArgs        = errors.New("tool arguments violate declaration")
	ErrRunExhausted    = errors.New("tool loop exceeded max rounds")
)
