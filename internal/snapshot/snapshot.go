// Package snapshot persists catalog entities as date-stamped JSON files
// and reads them back for reconciliation, either from a local directory
// or from a git-hosted archive.
package snapshot

import (
	"cmp"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"slices"
	"time"

	"github.com/jhaugan/catsync/internal/api"
)

const (
	// JSONIndent is the indentation used for snapshot files.
	JSONIndent = "    "

	fileDateFormat = "20060102"
)

// FileName returns the snapshot file name for kind on day t,
// e.g. "systems_data_20260825.json".
func FileName(kind api.Kind, t time.Time) string {
	return fmt.Sprintf("%ss_data_%s.json", kind, t.Format(fileDateFormat))
}

// Writer persists entity snapshots into a Source.
type Writer struct {
	Target Source
	// Now supplies the time used for file naming.
	// [optional] Defaults to time.Now.
	Now func() time.Time
}

// Write persists records as the snapshot of the given kind for the
// current day and returns the name of the written file. A snapshot
// written earlier the same day for the same kind is overwritten.
//
// Records are written exactly as the server returned them: the raw bytes
// retained at decode time, not a re-marshaled projection, so fields this
// tool does not model survive the round trip.
func (w *Writer) Write(records []api.Entity, kind api.Kind) (string, error) {
	raws := make([]json.RawMessage, len(records))
	for i := range records {
		raw, err := records[i].RawJSON()
		if err != nil {
			return "", fmt.Errorf("encoding record %d: %w", i, err)
		}
		raws[i] = raw
	}
	data, err := json.MarshalIndent(raws, "", JSONIndent)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	name := FileName(kind, now())
	if err := w.Target.WriteFile(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// Read decodes the snapshot at path within src. A missing file surfaces
// as fs.ErrNotExist so that callers can report it and carry on.
func Read(src Source, path string) ([]api.Entity, error) {
	bs, err := src.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entities []api.Entity
	if err := json.Unmarshal(bs, &entities); err != nil {
		return nil, fmt.Errorf("decoding snapshot %q: %w", path, err)
	}
	for i := range entities {
		if entities[i].SourceInfo != nil {
			entities[i].SourceInfo.Path = path
		}
	}
	return entities, nil
}

// Info describes one snapshot file found in an archive.
type Info struct {
	Path string
	Kind api.Kind
	Date time.Time
}

var fileRE = regexp.MustCompile(`^(domain|system)s_data_(\d{8})\.json$`)

// ParseInfo derives the snapshot kind and date from a file path. It
// reports false for paths that do not follow the snapshot naming scheme.
func ParseInfo(p string) (Info, bool) {
	m := fileRE.FindStringSubmatch(path.Base(p))
	if m == nil {
		return Info{}, false
	}
	date, err := time.Parse(fileDateFormat, m[2])
	if err != nil {
		return Info{}, false
	}
	return Info{Path: p, Kind: api.Kind(m[1]), Date: date}, true
}

// List returns the snapshots in src sorted by kind, date, and path.
// Files that do not follow the snapshot naming scheme are ignored.
func List(src Source) ([]Info, error) {
	files, err := src.ListFiles()
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, f := range files {
		info, ok := ParseInfo(f)
		if !ok {
			continue
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return infos, nil
}
