// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package filestore

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	S3Prefix  = "s3://"
	S3APrefix = "s3a://"
)

var ValidSchemes = []string{
	S3Prefix, S3APrefix,
}

// GeneratedScriptsPrefix is the key prefix rendered job scripts are uploaded under.
const GeneratedScriptsPrefix = "generated-etls"

// FilePath is an object location. scheme includes "://", e.g. s3://.
type FilePath struct {
	scheme string
	bucket string
	key    string
}

func (fp *FilePath) Scheme() string {
	return fp.scheme
}

func (fp *FilePath) SetBucket(bucket string) {
	fp.bucket = strings.Trim(bucket, "/")
}

func (fp *FilePath) Bucket() string {
	return fp.bucket
}

func (fp *FilePath) SetKey(key string) {
	fp.key = strings.TrimPrefix(key, "/")
}

func (fp *FilePath) Key() string {
	return fp.key
}

func (fp *FilePath) ToURI() string {
	if fp.key == "" {
		return fmt.Sprintf("%s%s/", fp.scheme, fp.bucket)
	}
	return fmt.Sprintf("%s%s/%s", fp.scheme, fp.bucket, fp.key)
}

func (fp *FilePath) ParseFilePath(fullPath string) error {
	u, err := url.Parse(fullPath)
	if err != nil {
		return fmt.Errorf("could not parse full path '%s': %v", fullPath, err)
	}
	// url.URL.Scheme has no "://" but ours does.
	scheme := fmt.Sprintf("%s://", u.Scheme)
	if err := checkScheme(scheme); err != nil {
		return err
	}
	fp.scheme = scheme
	fp.bucket = u.Host
	fp.key = strings.TrimPrefix(u.Path, "/")
	return nil
}

func checkScheme(scheme string) error {
	for _, s := range ValidSchemes {
		if s == scheme {
			return nil
		}
	}
	return fmt.Errorf("invalid scheme '%s', must be one of %v", scheme, ValidSchemes)
}

type S3Filepath struct {
	FilePath
}

func NewS3Filepath(bucket, key string) *S3Filepath {
	fp := &S3Filepath{FilePath{scheme: S3Prefix}}
	fp.SetBucket(bucket)
	fp.SetKey(key)
	return fp
}

// ParseS3Filepath parses and validates a URI such as s3://bucket/path/to/object.
func ParseS3Filepath(uri string) (*S3Filepath, error) {
	fp := &S3Filepath{}
	if err := fp.ParseFilePath(uri); err != nil {
		return nil, err
	}
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	return fp, nil
}

func (s3 *S3Filepath) Validate() error {
	if s3.scheme != S3Prefix && s3.scheme != S3APrefix {
		return fmt.Errorf("invalid scheme '%s', must be 's3://' or 's3a://'", s3.scheme)
	}
	if s3.bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}
	return nil
}

// GeneratedScriptPath is where a rendered script named name is uploaded in bucket.
func GeneratedScriptPath(bucket, name string) *S3Filepath {
	return NewS3Filepath(bucket, path.Join(GeneratedScriptsPrefix, name))
}
