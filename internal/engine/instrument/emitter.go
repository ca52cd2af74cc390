package instrument

import (
	"devcrawl/internal/core/errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Edit replaces Source[Start:End] with Text. Start == End is an insertion.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Apply serializes the edited source. Edits must not overlap; insertions at
// the same offset are emitted in slice order.
func Apply(src []byte, edits []Edit) ([]byte, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	size := len(src)
	for _, e := range sorted {
		size += len(e.Text) - (e.End - e.Start)
	}
	out := make([]byte, 0, size)

	cursor := 0
	for _, e := range sorted {
		if e.Start < cursor || e.End < e.Start || e.End > len(src) {
			return nil, errors.New(errors.CodeInternal, fmt.Sprintf("overlapping or out-of-range edit [%d,%d)", e.Start, e.End))
		}
		out = append(out, src[cursor:e.Start]...)
		out = append(out, e.Text...)
		cursor = e.End
	}
	return append(out, src[cursor:]...), nil
}

// DebugPath is the deterministic sibling name of an instrumented script.
func DebugPath(path, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Emitter persists instrumented sources next to their originals.
type Emitter struct {
	Suffix string
}

type Emitted struct {
	Source      string
	Destination string
	Existed     bool
}

// Write stores content at the debug sibling of source. An existing
// destination is only replaced when overwrite is set; either way Existed
// reports what was found. The content is written to a temp file and renamed
// into place, so the original is never touched and no partial output is
// left behind.
func (e Emitter) Write(source string, content []byte, overwrite bool) (Emitted, error) {
	dest := DebugPath(source, e.Suffix)
	res := Emitted{Source: source, Destination: dest}

	if _, err := os.Lstat(dest); err == nil {
		res.Existed = true
	} else if !os.IsNotExist(err) {
		return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "stat destination"), errors.CtxPath, dest)
	}
	if res.Existed && !overwrite {
		return res, errors.AddContext(errors.New(errors.CodeConflict, "destination exists and overwrite was declined"), errors.CtxPath, dest)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(source); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "create temp file"), errors.CtxPath, dest)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write instrumented script"), errors.CtxPath, dest)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "close instrumented script"), errors.CtxPath, dest)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "chmod instrumented script"), errors.CtxPath, dest)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "rename instrumented script"), errors.CtxPath, dest)
	}
	return res, nil
}
