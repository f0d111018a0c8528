// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package filestore

import (
	"testing"
)

func TestParseS3Filepath(t *testing.T) {
	type expected struct {
		scheme string
		bucket string
		key    string
		uri    string
	}
	tests := []struct {
		name      string
		uri       string
		expected  expected
		expectErr bool
	}{
		{
			name: "Nested key",
			uri:  "s3://etl-scripts/templates/dcm/load.py",
			expected: expected{
				scheme: S3Prefix,
				bucket: "etl-scripts",
				key:    "templates/dcm/load.py",
				uri:    "s3://etl-scripts/templates/dcm/load.py",
			},
		},
		{
			name: "Bucket only log uri",
			uri:  "s3://aws-logs-123/elasticmapreduce/",
			expected: expected{
				scheme: S3Prefix,
				bucket: "aws-logs-123",
				key:    "elasticmapreduce/",
				uri:    "s3://aws-logs-123/elasticmapreduce/",
			},
		},
		{
			name: "S3A scheme",
			uri:  "s3a://bucket/manifest.json",
			expected: expected{
				scheme: S3APrefix,
				bucket: "bucket",
				key:    "manifest.json",
				uri:    "s3a://bucket/manifest.json",
			},
		},
		{name: "Wrong scheme", uri: "gs://bucket/file.py", expectErr: true},
		{name: "No scheme", uri: "/tmp/file.py", expectErr: true},
		{name: "Missing bucket", uri: "s3:///file.py", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := ParseS3Filepath(tt.uri)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("Expected error parsing %s", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			got := expected{
				scheme: fp.Scheme(),
				bucket: fp.Bucket(),
				key:    fp.Key(),
				uri:    fp.ToURI(),
			}
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestNewS3FilepathTrimsSlashes(t *testing.T) {
	fp := NewS3Filepath("/bucket/", "/templates/load.py")
	if fp.Scheme() != S3Prefix {
		t.Fatalf("Unexpected scheme %s", fp.Scheme())
	}
	if fp.ToURI() != "s3://bucket/templates/load.py" {
		t.Fatalf("Unexpected URI %s", fp.ToURI())
	}
	if err := fp.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestGeneratedScriptPath(t *testing.T) {
	fp := GeneratedScriptPath("etl-bucket", "load_nonprod_1500000000.py")
	if fp.ToURI() != "s3://etl-bucket/generated-etls/load_nonprod_1500000000.py" {
		t.Fatalf("Unexpected URI %s", fp.ToURI())
	}
	if fp.Key() != "generated-etls/load_nonprod_1500000000.py" {
		t.Fatalf("Unexpected key %s", fp.Key())
	}
}
