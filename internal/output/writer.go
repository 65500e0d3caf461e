// Package output serializes the final harvest to flat files: a JSON list
// and a CSV table, both ordered the way the caller hands them in.
package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/extractor"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

var csvHeader = []string{"rank", "user", "name", "full_name", "stars", "description", "language", "avatar_url", "repo_url"}

type Writer struct {
	Logger log.Logger
	Config *cfg.Config
}

func NewWriter(logger log.Logger, config *cfg.Config) (*Writer, error) {
	return &Writer{
		Logger: logger,
		Config: config,
	}, nil
}

// WriteAll writes both output files.
func (w *Writer) WriteAll(ctx context.Context, records []extractor.RepoRecord) error {
	if err := w.WriteJSON(ctx, records); err != nil {
		return err
	}
	return w.WriteCSV(ctx, records)
}

func (w *Writer) WriteJSON(ctx context.Context, records []extractor.RepoRecord) error {
	path := w.Config.Ranking.JsonFile
	if err := ensureDir(path); err != nil {
		return err
	}

	w.Logger.Info(ctx, "Saving %d repositories to %s", len(records), path)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json output: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

func (w *Writer) WriteCSV(ctx context.Context, records []extractor.RepoRecord) error {
	path := w.Config.Ranking.CsvFile
	if err := ensureDir(path); err != nil {
		return err
	}

	w.Logger.Info(ctx, "Saving repositories to %s", path)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Rank),
			rec.User,
			rec.Name,
			rec.FullName,
			strconv.Itoa(rec.Stars),
			rec.Description,
			rec.Language,
			rec.AvatarUrl,
			rec.RepoUrl,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
