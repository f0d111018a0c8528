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

func NewObjectNotFoundError(bucket, key string, err error) *ObjectNotFoundError {
	if err == nil {
		err = fmt.Errorf("object not found")
	}
	baseError := newBaseError(err, OBJECT_NOT_FOUND)
	baseError.AddDetail("Bucket", bucket)
	baseError.AddDetail("Key", key)

	return &ObjectNotFoundError{
		baseError,
	}
}

type ObjectNotFoundError struct {
	baseError
}

func NewMissingManifestKeyError(key string) *MissingManifestKeyError {
	baseError := newBaseError(fmt.Errorf("manifest is missing required key %q", key), MISSING_MANIFEST_KEY)
	baseError.AddDetail("Key", key)

	return &MissingManifestKeyError{
		baseError,
	}
}

type MissingManifestKeyError struct {
	baseError
}
