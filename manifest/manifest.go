// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/featureform/emrlauncher/fferr"
)

const (
	etlSection         = "etl"
	resourceSection    = "resource"
	sourceSection      = "source"
	placeholderSection = "placeholder"

	DefaultInstanceType = "m3.xlarge"
)

var (
	etlKeys      = []string{"script", "type", "script_s3_bucket", "script_s3_key"}
	resourceKeys = []string{"instance_type", "instance_count", "use_existing_cluster", "terminate_cluster"}
)

type ETL struct {
	Script         string `mapstructure:"script"`
	Type           string `mapstructure:"type"`
	ScriptS3Bucket string `mapstructure:"script_s3_bucket"`
	ScriptS3Key    string `mapstructure:"script_s3_key"`
}

type Resource struct {
	InstanceType       string `mapstructure:"instance_type"`
	InstanceCount      int32  `mapstructure:"instance_count"`
	UseExistingCluster bool   `mapstructure:"use_existing_cluster"`
	TerminateCluster   bool   `mapstructure:"terminate_cluster"`
}

// Placeholder is a literal token and the text that replaces it.
type Placeholder struct {
	Key   string
	Value string
}

// Replacements keeps the key order of the manifest section it came from.
type Replacements []Placeholder

func (r Replacements) Get(key string) (string, bool) {
	for _, p := range r {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

type Manifest struct {
	ETL      ETL
	Resource Resource
	// Replacements is always [source, placeholder], applied in that order.
	Replacements []Replacements
}

// New returns a manifest with the defaults that apply before anything is parsed.
func New() *Manifest {
	return &Manifest{
		Resource: Resource{
			InstanceType:       DefaultInstanceType,
			InstanceCount:      0,
			UseExistingCluster: false,
			TerminateCluster:   true,
		},
	}
}

// ParseBool reports whether s starts with 't' or 'T'. It is not a general boolean
// parser: "yes" and "1" are false. An empty string has no first character and is rejected.
func ParseBool(s string) (bool, error) {
	if s == "" {
		return false, fferr.NewInvalidArgumentErrorf("cannot parse empty string as a boolean flag")
	}
	return strings.ToUpper(s[:1]) == "T", nil
}

type rawManifest struct {
	ETL         map[string]interface{} `json:"etl"`
	Resource    map[string]interface{} `json:"resource"`
	Source      json.RawMessage        `json:"source"`
	Placeholder json.RawMessage        `json:"placeholder"`
}

func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		wrapped := fferr.NewInternalError(err)
		wrapped.AddDetail("path", path)
		return nil, wrapped
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a manifest document. Every key of the etl and resource sections is
// required, as are the source and placeholder sections.
func Parse(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fferr.NewInternalError(err)
	}
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fferr.NewInvalidArgumentError(fmt.Errorf("malformed manifest: %w", err))
	}

	m := New()
	if err := decodeSection(etlSection, raw.ETL, etlKeys, &m.ETL); err != nil {
		return nil, err
	}
	if err := decodeSection(resourceSection, raw.Resource, resourceKeys, &m.Resource); err != nil {
		return nil, err
	}
	source, err := decodeReplacements(sourceSection, raw.Source)
	if err != nil {
		return nil, err
	}
	placeholder, err := decodeReplacements(placeholderSection, raw.Placeholder)
	if err != nil {
		return nil, err
	}
	m.Replacements = []Replacements{source, placeholder}
	return m, nil
}

func decodeSection(section string, values map[string]interface{}, required []string, out interface{}) error {
	if values == nil {
		return fferr.NewMissingManifestKeyError(section)
	}
	for _, key := range required {
		if v, has := values[key]; !has || v == nil {
			return fferr.NewMissingManifestKeyError(fmt.Sprintf("%s.%s", section, key))
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(flagHook, countHook),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fferr.NewInternalError(err)
	}
	if err := decoder.Decode(values); err != nil {
		wrapped := fferr.NewInvalidArgumentError(fmt.Errorf("invalid %s section: %w", section, err))
		wrapped.AddDetail("section", section)
		return wrapped
	}
	return nil
}

// flagHook routes every value headed for a bool field through ParseBool. JSON
// booleans are taken as they are.
func flagHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Bool {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return v, nil
	case string:
		return ParseBool(v)
	default:
		return nil, fmt.Errorf("cannot parse %v of type %s as a boolean flag", data, from)
	}
}

// countHook rejects JSON numbers headed for an int32 field that are not whole or
// do not fit. Strings are left to mapstructure, which parses them with the field's
// bit size.
func countHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Int32 {
		return data, nil
	}
	f, ok := data.(float64)
	if !ok {
		return data, nil
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil, fmt.Errorf("%v is not a whole number in the int32 range", f)
	}
	return int32(f), nil
}

// decodeReplacements walks the object token by token so the result follows document
// order. A repeated key keeps its first position and its last value.
func decodeReplacements(section string, raw json.RawMessage) (Replacements, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fferr.NewMissingManifestKeyError(section)
	}
	invalid := func(err error) error {
		wrapped := fferr.NewInvalidArgumentError(fmt.Errorf("invalid %s section: %w", section, err))
		wrapped.AddDetail("section", section)
		return wrapped
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, invalid(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, invalid(fmt.Errorf("expected an object"))
	}

	replacements := Replacements{}
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, invalid(err)
		}
		key := keyTok.(string)
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, invalid(err)
		}
		str, ok := value.(string)
		if !ok {
			return nil, invalid(fmt.Errorf("value of %q must be a string, got %T", key, value))
		}
		if i, has := index[key]; has {
			replacements[i].Value = str
			continue
		}
		index[key] = len(replacements)
		replacements = append(replacements, Placeholder{Key: key, Value: str})
	}
	return replacements, nil
}
