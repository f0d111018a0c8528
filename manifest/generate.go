// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/featureform/emrlauncher/fferr"
	"github.com/featureform/emrlauncher/logging"
)

// Downloader fetches an object into a local directory and returns its local path.
type Downloader interface {
	DownloadToDir(ctx context.Context, bucket, key, dir string) (string, error)
}

type ParserConfig struct {
	Downloader Downloader
	// Environment is the execution environment label, e.g. nonprod.
	Environment string
	// WorkDir receives both the downloaded template and the rendered script.
	WorkDir string
	Logger  logging.Logger
	Clock   clockwork.Clock
}

type Parser struct {
	downloader  Downloader
	environment string
	workDir     string
	logger      logging.Logger
	clock       clockwork.Clock
}

func NewParser(cfg ParserConfig) (*Parser, error) {
	if cfg.Downloader == nil {
		return nil, fferr.NewInternalErrorf("manifest parser requires a downloader")
	}
	if cfg.WorkDir == "" {
		return nil, fferr.NewInvalidArgumentErrorf("manifest parser requires a work directory")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger.SugaredLogger == nil {
		logger = logging.NewLogger("manifest")
	}
	return &Parser{
		downloader:  cfg.Downloader,
		environment: cfg.Environment,
		workDir:     cfg.WorkDir,
		logger:      logger,
		clock:       clock,
	}, nil
}

// GeneratedName is the file name a rendered copy of template gets: the template name
// with ".py" removed, then _<environment>_<unix seconds>.py appended.
func GeneratedName(template, environment string, unix int64) string {
	base := strings.ReplaceAll(filepath.Base(template), ".py", "")
	return fmt.Sprintf("%s_%s_%d.py", base, environment, unix)
}

// GenerateETL downloads the manifest's template into the work directory and renders
// it next to the template. It returns the rendered file's name without a directory.
func (p *Parser) GenerateETL(ctx context.Context, m *Manifest) (string, error) {
	logger := p.logger.With("bucket", m.ETL.ScriptS3Bucket, "key", m.ETL.ScriptS3Key)
	src, err := p.downloader.DownloadToDir(ctx, m.ETL.ScriptS3Bucket, m.ETL.ScriptS3Key, p.workDir)
	if err != nil {
		logger.Errorw("Failed to download ETL template", "err", err)
		return "", err
	}
	logger.Infow("Source ETL File", "path", src)

	name := GeneratedName(src, p.environment, p.clock.Now().Unix())
	dest := filepath.Join(filepath.Dir(src), name)
	if err := RenderFile(src, dest, m.Replacements); err != nil {
		logger.Errorw("Failed to render ETL template", "dest", dest, "err", err)
		return "", err
	}
	logger.Infow("Rendered ETL from template", "dest", dest)
	return name, nil
}

// ParseManifestFile parses the manifest at dir/file and generates the ETL it describes.
func (p *Parser) ParseManifestFile(ctx context.Context, dir, file string) (*Manifest, string, error) {
	path := filepath.Join(dir, file)
	m, err := ParseFile(path)
	if err != nil {
		p.logger.Errorw("Failed to parse manifest", "path", path, "err", err)
		return nil, "", err
	}
	p.logger.Debugw("Parsed manifest", "path", path, "etl", m.ETL, "resource", m.Resource, "replacements", m.Replacements)
	name, err := p.GenerateETL(ctx, m)
	if err != nil {
		return m, "", err
	}
	return m, name, nil
}
