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

func NewInternalError(err error) *InternalError {
	if err == nil {
		err = fmt.Errorf("internal")
	}
	baseError := newBaseError(err, INTERNAL_ERROR)

	return &InternalError{
		baseError,
	}
}

func NewInternalErrorf(format string, a ...any) *InternalError {
	return NewInternalError(fmt.Errorf(format, a...))
}

type InternalError struct {
	baseError
}

func NewInvalidArgumentError(err error) *InvalidArgumentError {
	if err == nil {
		err = fmt.Errorf("invalid argument")
	}
	baseError := newBaseError(err, INVALID_ARGUMENT)

	return &InvalidArgumentError{
		baseError,
	}
}

func NewInvalidArgumentErrorf(format string, a ...any) *InvalidArgumentError {
	return NewInvalidArgumentError(fmt.Errorf(format, a...))
}

type InvalidArgumentError struct {
	baseError
}
