// Package archive unpacks the vendor-supplied controller bundle.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
)

// Extract unpacks a .tar.gz/.tgz or .tar.xz archive into destDir,
// creating it if needed. Existing files are overwritten without prompting.
// Entries that would escape destDir are rejected.
func Extract(archivePath, destDir string) error {
	log := logger.Logger()

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	case strings.HasSuffix(archivePath, ".tar.xz"):
		xzReader, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzReader
	default:
		return fmt.Errorf("unsupported archive format: %s", archivePath)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create extraction directory %s: %w", destDir, err)
	}
	resolvedDest, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve extraction directory %s: %w", destDir, err)
	}

	tarReader := tar.NewReader(reader)
	count := 0
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}

		target, err := sanitizePath(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := confineParent(resolvedDest, target, header.Name); err != nil {
				return err
			}
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := confineParent(resolvedDest, target, header.Name); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", target, err)
			}
			if _, err := io.Copy(out, tarReader); err != nil {
				out.Close()
				return fmt.Errorf("failed to extract %s: %w", header.Name, err)
			}
			out.Close()
			count++
		case tar.TypeSymlink:
			// The link destination is resolved relative to the entry's own
			// directory; anything landing outside destDir is rejected so a
			// later entry cannot be routed through it.
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("archive entry %s links outside extraction directory", header.Name)
			}
			linkDest := filepath.Join(filepath.Dir(target), header.Linkname)
			if !withinDir(filepath.Clean(destDir), linkDest) {
				return fmt.Errorf("archive entry %s links outside extraction directory", header.Name)
			}
			if err := confineParent(resolvedDest, target, header.Name); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", target, err)
			}
		default:
			log.Debugf("Skipping archive entry %s (type %d)", header.Name, header.Typeflag)
		}
	}

	log.Infof("Extracted %d files from %s to %s", count, archivePath, destDir)
	return nil
}

// sanitizePath joins name onto destDir and rejects absolute names and
// entries that traverse outside the destination.
func sanitizePath(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry %s has an absolute path", name)
	}
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %s escapes extraction directory", name)
	}
	return target, nil
}

// confineParent creates the parent directory of target and verifies that,
// with symlinks resolved, it still lies inside resolvedDest. The name check
// in sanitizePath is purely lexical, so without this a symlink already
// present under destDir could redirect an entry outside it.
func confineParent(resolvedDest, target, name string) error {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	resolved, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", parent, err)
	}
	if !withinDir(resolvedDest, resolved) {
		return fmt.Errorf("archive entry %s escapes extraction directory", name)
	}
	return nil
}

func withinDir(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}
