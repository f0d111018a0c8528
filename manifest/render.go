// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package manifest

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/featureform/emrlauncher/fferr"
)

// SubstituteLine replaces every literal occurrence of each key, mapping by mapping and
// key by key. Output of an earlier replacement is visible to later ones.
func SubstituteLine(line string, replacements []Replacements) string {
	for _, mapping := range replacements {
		for _, p := range mapping {
			line = strings.ReplaceAll(line, p.Key, p.Value)
		}
	}
	return line
}

// Render copies src to dst one line at a time, substituting placeholders in each line.
// Line endings, including a missing final newline, are kept as they are.
func Render(src io.Reader, dst io.Writer, replacements []Replacements) error {
	reader := bufio.NewReader(src)
	writer := bufio.NewWriter(dst)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if _, werr := writer.WriteString(SubstituteLine(line, replacements)); werr != nil {
				return fferr.NewInternalError(werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fferr.NewInternalError(err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fferr.NewInternalError(err)
	}
	return nil
}

// RenderFile renders the template at srcPath into destPath, truncating destPath.
func RenderFile(srcPath, destPath string, replacements []Replacements) error {
	in, err := os.Open(srcPath)
	if err != nil {
		wrapped := fferr.NewInternalError(err)
		wrapped.AddDetail("template", srcPath)
		return wrapped
	}
	defer in.Close()
	out, err := os.Create(destPath)
	if err != nil {
		wrapped := fferr.NewInternalError(err)
		wrapped.AddDetail("destination", destPath)
		return wrapped
	}
	if err := Render(in, out, replacements); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fferr.NewInternalError(err)
	}
	return nil
}
