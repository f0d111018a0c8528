// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package fferr

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

func NewConnectionError(service string, err error) *ConnectionError {
	if err == nil {
		err = fmt.Errorf("initial connection error")
	}
	baseError := newBaseError(err, CONNECTION_ERROR)
	baseError.AddDetail("Service", service)
	addAWSErrorCode(&baseError, err)

	return &ConnectionError{
		baseError,
	}
}

type ConnectionError struct {
	baseError
}

// NewExecutionError wraps a failed call against a managed service. When the cause is
// an AWS API error its code is recorded as the aws_error_code detail.
func NewExecutionError(service string, err error) *ExecutionError {
	if err == nil {
		err = fmt.Errorf("initial execution error")
	}
	baseError := newBaseError(err, EXECUTION_ERROR)
	baseError.AddDetail("Service", service)
	addAWSErrorCode(&baseError, err)

	return &ExecutionError{
		baseError,
	}
}

type ExecutionError struct {
	baseError
}

func addAWSErrorCode(base *baseError, err error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		base.AddDetail("AWS_Error_Code", apiErr.ErrorCode())
	}
}
