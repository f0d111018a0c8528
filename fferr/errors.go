// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package fferr

import (
	"fmt"
)

const (
	// PROVIDERS:
	EXECUTION_ERROR  = "Execution Error"
	CONNECTION_ERROR = "Connection Error"

	// STORAGE:
	OBJECT_NOT_FOUND = "Object Not Found"

	// MANIFEST:
	MISSING_MANIFEST_KEY = "Missing Manifest Key"

	// MISCELLANEOUS:
	INTERNAL_ERROR   = "Internal Error"
	INVALID_ARGUMENT = "Invalid Argument"
	INVALID_CONFIG   = "Invalid Config"
)

type JSONStackTrace map[string]interface{}

// Error is implemented by every error type in this package.
type Error interface {
	GetType() string
	AddDetail(key, value string)
	AddDetails(keysAndValues ...string)
	Details() map[string]string
	Stack() JSONStackTrace
	Error() string
}

func newBaseError(err error, errorType string) baseError {
	if err == nil {
		err = fmt.Errorf("initial error")
	}
	return baseError{
		errorType:    errorType,
		GenericError: NewGenericError(err),
	}
}

type baseError struct {
	errorType string
	GenericError
}

func (e *baseError) GetType() string {
	return e.errorType
}

func (e *baseError) AddDetail(key, value string) {
	e.GenericError.AddDetail(key, value)
}

func (e *baseError) Error() string {
	return e.GenericError.Error()
}
