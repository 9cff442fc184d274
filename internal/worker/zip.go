package worker

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"

	"github.com/corelab/udd-packager/internal/application/port"
)

// buildZipArchive streams every file in files into a new zip at
// destPath, one entry per file named by its basename. It writes
// directly to the destination writer rather than buffering the
// archive in memory, the way the teacher's export pipelines stream
// CSV rows rather than materialize a whole table. On any read/write
// failure the partial archive is deleted before the error is
// returned.
func buildZipArchive(fs port.FileSpace, destPath string, files []string) (err error) {
	out, err := fs.OpenWriter(destPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(out)

	defer func() {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("finalize archive: %w", cerr)
		}
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
		if err != nil {
			_ = fs.Delete(destPath)
		}
	}()

	for _, path := range files {
		if err = appendZipEntry(fs, zw, path); err != nil {
			return fmt.Errorf("add %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

func appendZipEntry(fs port.FileSpace, zw *zip.Writer, path string) error {
	in, err := fs.OpenReader(path)
	if err != nil {
		return err
	}
	defer in.Close()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}

	_, err = io.Copy(entry, in)
	return err
}
