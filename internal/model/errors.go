package model

import "errors"

var (
	ErrDependencyCycle         = errors.New("dependency cycle detected")
	ErrInvalidTemplate         = errors.New("invalid wbs template")
	ErrInvalidStatusTransition = errors.New("invalid wbs status transition")
	ErrInvalidMaxLevel         = errors.New("max level must be at least 1")
	ErrTaskNotFound            = errors.New("wbs task not found")
)
