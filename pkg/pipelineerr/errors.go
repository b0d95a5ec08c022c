// Package pipelineerr gives the five failure classes in the pipeline's
// error handling design (configuration, preparation, embedding,
// validation, persistence) a typed shape, so core/transform can tell
// them apart without string matching. There is no HTTP surface in this
// repo, so unlike the adapter this is grounded on, there's no status
// code here: just a class and the wrapped cause.
package pipelineerr

import (
	"errors"
	"fmt"
)

type Class string

const (
	ClassConfiguration Class = "configuration"
	ClassPreparation   Class = "preparation"
	ClassEmbedding     Class = "embedding"
	ClassValidation    Class = "validation"
	ClassPersistence   Class = "persistence"
)

// PipelineError is a classified, wrapped error.
type PipelineError struct {
	Class   Class
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func Configuration(message string, err error) *PipelineError {
	return &PipelineError{Class: ClassConfiguration, Message: message, Err: err}
}

func Preparation(message string, err error) *PipelineError {
	return &PipelineError{Class: ClassPreparation, Message: message, Err: err}
}

func Embedding(message string, err error) *PipelineError {
	return &PipelineError{Class: ClassEmbedding, Message: message, Err: err}
}

func Validation(message string, err error) *PipelineError {
	return &PipelineError{Class: ClassValidation, Message: message, Err: err}
}

func Persistence(message string, err error) *PipelineError {
	return &PipelineError{Class: ClassPersistence, Message: message, Err: err}
}

// ClassOf returns the class of err if it is (or wraps) a *PipelineError,
// and false otherwise.
func ClassOf(err error) (Class, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Class, true
	}
	return "", false
}
