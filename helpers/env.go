// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package helpers

import (
	"os"
	"strconv"
	"time"
)

// GetEnv Takes a environment variable key and returns the value if it exists.
// Otherwise returns the fallback value provided
func GetEnv(key, fallback string) string {
	value, has := os.LookupEnv(key)
	if !has {
		return fallback
	}
	return value
}

func getEnvGeneric(key string, fallback interface{}, converter func(string) (interface{}, error)) interface{} {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	parsedValue, err := converter(value)
	if err != nil {
		return fallback
	}
	return parsedValue
}

func GetEnvBool(key string, fallback bool) bool {
	return getEnvGeneric(key, fallback, func(val string) (interface{}, error) {
		parsedValue, err := strconv.ParseBool(val)
		return parsedValue, err
	}).(bool)
}

// GetEnvDuration accepts anything time.ParseDuration does, e.g. "10s" or "1m30s".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	return getEnvGeneric(key, fallback, func(val string) (interface{}, error) {
		parsedValue, err := time.ParseDuration(val)
		return parsedValue, err
	}).(time.Duration)
}

// LookupEnv is os.LookupEnv, kept here so config code reads the same way as GetEnv.
func LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
