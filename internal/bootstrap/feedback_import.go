package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"feedback_server/config"
	"feedback_server/core/domain"
	"feedback_server/core/service/ingest"
)

// RunImport ingests a local UTF-8 file once and returns the batch report.
func RunImport(ctx context.Context, cfg *config.Config, path string) (domain.BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return domain.BatchReport{}, fmt.Errorf("%s is not UTF-8 text", path)
	}

	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		return domain.BatchReport{}, err
	}
	defer cleanup()

	return deps.Pipeline.IngestSource(ctx, domain.SourceCLI, ingest.SplitLines(string(data)))
}
