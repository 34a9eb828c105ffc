package xmldb

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// DefaultArchiveExt is the extension used by Export when none is given.
const DefaultArchiveExt = ".db"

// Export writes a compressed archive of the whole workspace tree to
// destDir/filename+ext and returns its path. An empty ext means
// DefaultArchiveExt. An existing file at that path is overwritten.
func (e *Engine) Export(destDir, filename, ext string) (string, error) {
	const op = "export"
	if destDir == "" || filename == "" {
		return "", errorf(op, ErrInvalidArgument, "destination directory and file name are required")
	}
	workspace := e.Workspace()
	if workspace == "" {
		return "", errorf(op, ErrInvalidArgument, "no workspace set")
	}
	if ext == "" {
		ext = DefaultArchiveExt
	}
	if !strings.HasSuffix(destDir, string(os.PathSeparator)) {
		destDir += string(os.PathSeparator)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil { //nolint:gosec // G301: archive directories are world-readable.
		return "", newError(op, ErrIO, destDir, err)
	}
	full := filepath.Join(destDir, filename+ext)

	e.io.Lock()
	err := writeArchive(full, workspace)
	e.io.Unlock()
	if err != nil {
		return "", newError(op, ErrIO, full, err)
	}
	e.logger.Debug("Exported workspace", "path", full)
	e.events.publish(Event{Kind: EventExported, Name: filepath.Base(full), Path: full, Time: time.Now()})
	return full, nil
}

// writeArchive zips every file and directory below root into dst. dst itself
// is skipped when it lies inside root.
func writeArchive(dst, root string) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	absDst, _ := filepath.Abs(dst)
	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		if abs, _ := filepath.Abs(path); abs == absDst {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
			_, err = zw.CreateHeader(hdr)
			return err
		}
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() {
			_ = src.Close()
		}()
		_, err = io.Copy(w, src)
		return err
	})
	if cerr := zw.Close(); walkErr == nil {
		walkErr = cerr
	}
	return walkErr
}

// Import extracts the archive at archivePath into destDir, replacing files
// at matching relative paths. The EventImported it publishes carries the
// last extracted file, or destDir when the archive holds no file.
func (e *Engine) Import(archivePath, destDir string) error {
	const op = "import"
	if archivePath == "" || destDir == "" {
		return errorf(op, ErrInvalidArgument, "archive path and destination directory are required")
	}
	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newError(op, ErrNotFound, archivePath, nil)
		}
		return newError(op, ErrIO, archivePath, err)
	}

	e.io.Lock()
	last, err := extractArchive(archivePath, destDir)
	e.io.Unlock()
	if err != nil {
		return err
	}
	e.logger.Debug("Imported archive", "archive", archivePath, "dest", destDir)
	if last == "" {
		last = filepath.Clean(destDir)
	}
	e.events.publish(Event{Kind: EventImported, Name: filepath.Base(last), Path: last, Time: time.Now()})
	return nil
}

// extractArchive returns the path of the last file written.
func extractArchive(archivePath, destDir string) (string, error) {
	const op = "import"
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", newError(op, ErrFormat, archivePath, err)
	}
	defer func() {
		_ = r.Close()
	}()
	root := filepath.Clean(destDir)
	last := ""
	for _, zf := range r.File {
		target := filepath.Join(root, filepath.FromSlash(zf.Name))
		if rel, err := filepath.Rel(root, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return last, errorf(op, ErrInvalidArgument, "entry %q escapes %s", zf.Name, root)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil { //nolint:gosec // G301: extracted directories are world-readable.
				return last, newError(op, ErrIO, target, err)
			}
			continue
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return last, newError(op, ErrIO, target, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec // G301: extracted directories are world-readable.
			return last, newError(op, ErrIO, target, err)
		}
		if err := extractFile(zf, target); err != nil {
			return last, newError(op, ErrFormat, target, err)
		}
		last = target
	}
	return last, nil
}

func extractFile(zf *zip.File, target string) (err error) {
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // G304: target is checked against destDir.
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(dst, src) //nolint:gosec // G110: archives are produced by Export.
	return err
}
