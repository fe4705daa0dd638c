// Package archive reads an unpacked Twitter export and exposes its tweet
// files as ordered record groups.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

// Archive is an opened export directory.
type Archive struct {
	root     string
	manifest *Manifest
	logger   *slog.Logger
}

var _ migrate.Loader = (*Archive)(nil)

// Open reads the manifest under root/data. A missing or malformed manifest
// is a *migrate.LoadError.
func Open(root string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m, err := readManifest(root)
	if err != nil {
		return nil, &migrate.LoadError{GroupID: manifestName, Err: err}
	}
	if len(m.Files) == 0 {
		return nil, &migrate.LoadError{GroupID: manifestName, Err: fmt.Errorf("manifest lists no tweet files")}
	}

	return &Archive{root: root, manifest: m, logger: logger}, nil
}

func (a *Archive) Root() string {
	return a.root
}

func (a *Archive) Manifest() Manifest {
	return *a.manifest
}

func (a *Archive) UserName() string {
	return a.manifest.UserName
}

// MediaDir is the absolute directory tweet media is stored in.
func (a *Archive) MediaDir() string {
	dir := a.manifest.MediaDirectory
	if dir == "" {
		dir = filepath.Join("data", "tweets_media")
	}
	return filepath.Join(a.root, filepath.FromSlash(dir))
}

// Groups lists the tweet files in manifest order.
func (a *Archive) Groups(ctx context.Context) ([]migrate.GroupRef, error) {
	groups := make([]migrate.GroupRef, 0, len(a.manifest.Files))
	for _, f := range a.manifest.Files {
		groups = append(groups, migrate.GroupRef{
			ID:            f.FileName,
			ExpectedCount: f.Count,
			SourceRef:     f.GlobalName,
		})
	}
	return groups, nil
}

// Load parses one tweet file in file order.
func (a *Archive) Load(ctx context.Context, ref migrate.GroupRef) ([]migrate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(a.root, filepath.FromSlash(ref.ID))
	var entries []tweetEnvelope
	name, err := readAssignment(path, &entries)
	if err != nil {
		return nil, &migrate.LoadError{GroupID: ref.ID, Err: err}
	}
	if ref.SourceRef != "" && name != ref.SourceRef {
		return nil, &migrate.LoadError{
			GroupID: ref.ID,
			Err:     fmt.Errorf("file assigns %s, manifest expects %s", name, ref.SourceRef),
		}
	}

	mediaDir := a.MediaDir()
	records := make([]migrate.Record, 0, len(entries))
	for i, e := range entries {
		rec, err := toRecord(e.Tweet, mediaDir)
		if err != nil {
			return nil, &migrate.LoadError{GroupID: ref.ID, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		records = append(records, rec)
	}

	if missing := MissingMedia(records); missing > 0 {
		a.logger.Warn("media files missing from archive", "group", ref.ID, "missing", missing)
	}
	a.logger.Debug("group loaded", "group", ref.ID, "records", len(records))
	return records, nil
}

// MissingMedia counts attachments of records whose file is not on disk.
func MissingMedia(records []migrate.Record) int {
	n := 0
	for _, r := range records {
		for _, m := range r.Media {
			if _, err := os.Stat(m.Path); err != nil {
				n++
			}
		}
	}
	return n
}
