package fileops

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Cdogma/maehrdocs/constants"
	"github.com/Cdogma/maehrdocs/internal/common"
)

// Ops performs the physical filesystem commits. All failures are surfaced as
// common.ErrWrite and leave the source file in place; no partial move is
// acceptable.
type Ops struct {
	log *slog.Logger

	// Collision probing and the claim of a destination name must be atomic
	// per directory when documents are processed concurrently.
	mu       sync.Mutex
	dirLocks map[string]*sync.Mutex
}

func New(log *slog.Logger) *Ops {
	if log == nil {
		log = slog.Default()
	}
	return &Ops{log: log, dirLocks: make(map[string]*sync.Mutex)}
}

// EnsureDirs creates every directory that does not yet exist. Idempotent.
func (o *Ops) EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir %s: %v", common.ErrWrite, dir, err)
		}
	}
	return nil
}

// MoveToOutput moves src into dir under name, resolving collisions with a
// numeric suffix unless force allows overwriting. Returns the final path.
func (o *Ops) MoveToOutput(src, dir, name string, force bool) (string, error) {
	return o.moveToDir(src, dir, name, force)
}

// MoveToTrash moves src into the trash/duplicate holding area. The caller
// supplies the name (typically with the DUPLICATE_ prefix); the collision
// policy matches MoveToOutput.
func (o *Ops) MoveToTrash(src, dir, name string, force bool) (string, error) {
	return o.moveToDir(src, dir, name, force)
}

func (o *Ops) moveToDir(src, dir, name string, force bool) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%w: source missing %s: %v", common.ErrWrite, src, err)
	}
	if err := o.EnsureDirs(dir); err != nil {
		return "", err
	}

	unlock := o.lockDir(dir)
	defer unlock()

	dest := filepath.Join(dir, name)
	if !force {
		dest = uniqueDest(dir, name)
	}
	if err := move(src, dest); err != nil {
		o.log.Error("fileops.move.failed", "src", src, "dest", dest, "error", err)
		return "", fmt.Errorf("%w: move %s -> %s: %v", common.ErrWrite, src, dest, err)
	}
	o.log.Info("fileops.move.ok", "src", src, "dest", dest)
	return dest, nil
}

// Backup copies src into backupDir (never moves), so a crash mid-commit
// cannot lose the original. Collisions get the numeric suffix.
func (o *Ops) Backup(src, backupDir string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%w: source missing %s: %v", common.ErrWrite, src, err)
	}
	if err := o.EnsureDirs(backupDir); err != nil {
		return "", err
	}

	unlock := o.lockDir(backupDir)
	defer unlock()

	dest := uniqueDest(backupDir, filepath.Base(src))
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("%w: backup %s -> %s: %v", common.ErrWrite, src, dest, err)
	}
	o.log.Info("fileops.backup.ok", "src", src, "dest", dest)
	return dest, nil
}

// ListPDFs returns the PDF files directly inside dir, sorted by path. A
// missing directory is an empty listing, not an error.
func (o *Ops) ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if constants.IsAllowedExt(filepath.Ext(e.Name())) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (o *Ops) lockDir(dir string) func() {
	o.mu.Lock()
	l, ok := o.dirLocks[dir]
	if !ok {
		l = &sync.Mutex{}
		o.dirLocks[dir] = l
	}
	o.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// uniqueDest appends _1, _2, ... before the extension until the name is free.
func uniqueDest(dir, name string) string {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// move renames src to dest, falling back to copy-then-delete across volumes.
// The source survives every failure path.
func move(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	tmp := dest + ".part"
	if err := copyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Remove(src); err != nil {
		// Could not release the source; undo the copy so exactly one file remains.
		_ = os.Remove(dest)
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	written, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}
	if written != st.Size() {
		_ = os.Remove(dest)
		return fmt.Errorf("short copy: %d of %d bytes", written, st.Size())
	}
	return nil
}
