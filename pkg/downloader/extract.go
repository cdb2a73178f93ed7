package downloader

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
	"github.com/libretto-pm/libretto-sub002/pkg/source"
	"github.com/ulikunitz/xz"
)

// ExtractOptions tunes a single extraction call.
type ExtractOptions struct {
	// StripPrefix removes this many leading path components from every
	// archive entry, the way a GitHub tarball wraps everything in a
	// single "owner-repo-sha/" directory that installers strip.
	StripPrefix int
	// PreservePermissions applies the archive's recorded Unix mode bits
	// to extracted files (POSIX hosts only).
	PreservePermissions bool
}

// ExtractionResult summarizes a completed extraction.
type ExtractionResult struct {
	FilesExtracted int
	TotalSize      int64
	// RootDir is set when dest contains exactly one top-level directory
	// after extraction, letting callers "rewrap" single-root archives.
	RootDir string
}

// Extract unpacks archive into dest (created if needed), dispatching on
// the archive's detected type. Every entry path is canonicalized and
// checked to stay under dest: an archive entry trying to write outside
// its extraction root (via "../" components or an absolute path) is
// rejected rather than silently clamped.
func Extract(archivePath, dest string, opts ExtractOptions) (ExtractionResult, error) {
	archiveType, ok := source.ArchiveTypeFromPath(archivePath)
	if !ok {
		return ExtractionResult{}, pipelineerr.New(pipelineerr.KindArchive, "extract", "unknown archive type: "+archivePath)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract", err)
	}

	var (
		result ExtractionResult
		err    error
	)
	switch archiveType {
	case source.ArchiveZip:
		result, err = extractZip(archivePath, dest, opts)
	case source.ArchiveTarGz:
		result, err = extractTarWith(archivePath, dest, opts, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case source.ArchiveTarBz2:
		result, err = extractTarWith(archivePath, dest, opts, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case source.ArchiveTarXz:
		result, err = extractTarWith(archivePath, dest, opts, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case source.ArchiveTarZst:
		result, err = extractTarWith(archivePath, dest, opts, func(r io.Reader) (io.Reader, error) {
			zr, zerr := zstd.NewReader(r)
			if zerr != nil {
				return nil, zerr
			}
			return zr.IOReadCloser(), nil
		})
	case source.ArchiveTar:
		result, err = extractTarWith(archivePath, dest, opts, func(r io.Reader) (io.Reader, error) {
			return r, nil
		})
	}
	if err != nil {
		return ExtractionResult{}, err
	}

	result.RootDir = findRootDir(dest)
	return result, nil
}

func extractZip(archivePath, dest string, opts ExtractOptions) (ExtractionResult, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindArchive, "extract.zip", err)
	}
	defer r.Close()

	var result ExtractionResult
	for _, f := range r.File {
		outPath, skip, err := sanitizeEntryPath(dest, f.Name, opts.StripPrefix)
		if err != nil {
			return ExtractionResult{}, err
		}
		if skip {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract.zip", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract.zip", err)
		}

		n, err := copyZipEntry(f, outPath, opts)
		if err != nil {
			return ExtractionResult{}, err
		}
		result.FilesExtracted++
		result.TotalSize += n
	}
	return result, nil
}

func copyZipEntry(f *zip.File, outPath string, opts ExtractOptions) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.KindArchive, "extract.zip", err)
	}
	defer rc.Close()

	mode := os.FileMode(0o644)
	if opts.PreservePermissions && f.Mode()&0o777 != 0 {
		mode = f.Mode()
	}

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.KindIO, "extract.zip", err)
	}
	defer out.Close()

	n, err := io.Copy(out, rc)
	if err != nil {
		return n, pipelineerr.Wrap(pipelineerr.KindArchive, "extract.zip", err)
	}
	return n, nil
}

func extractTarWith(archivePath, dest string, opts ExtractOptions, wrap func(io.Reader) (io.Reader, error)) (ExtractionResult, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract.tar", err)
	}
	defer f.Close()

	wrapped, err := wrap(f)
	if err != nil {
		return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindArchive, "extract.tar", err)
	}
	if closer, ok := wrapped.(io.Closer); ok {
		defer closer.Close()
	}

	tr := tar.NewReader(wrapped)
	var result ExtractionResult

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindArchive, "extract.tar", err)
		}

		outPath, skip, err := sanitizeEntryPath(dest, hdr.Name, opts.StripPrefix)
		if err != nil {
			return ExtractionResult{}, err
		}
		if skip {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract.tar", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract.tar", err)
			}
			mode := os.FileMode(0o644)
			if opts.PreservePermissions && hdr.Mode != 0 {
				mode = os.FileMode(hdr.Mode) & 0o777
			}
			out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
			if err != nil {
				return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "extract.tar", err)
			}
			n, err := io.Copy(out, tr)
			out.Close()
			if err != nil {
				return ExtractionResult{}, pipelineerr.Wrap(pipelineerr.KindArchive, "extract.tar", err)
			}
			result.FilesExtracted++
			result.TotalSize += n
		default:
			// symlinks and other special types are skipped: the resolver
			// never needs to preserve them, and following a malicious
			// symlink target is exactly the class of bug path-escape
			// validation exists to avoid.
		}
	}
	return result, nil
}

// sanitizeEntryPath normalizes an archive entry's path (backslashes to
// slashes, "." segments and empty segments dropped), rejects an absolute
// path or any ".." segment with an archive error, applies stripPrefix,
// and rejects any result that would land outside dest.
// skip=true means the entry had nothing left after stripping and should
// be ignored rather than written.
func sanitizeEntryPath(dest, rawName string, stripPrefix int) (outPath string, skip bool, err error) {
	normalized := strings.ReplaceAll(rawName, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", false, pipelineerr.New(pipelineerr.KindArchive, "extract", "absolute path entry: "+rawName)
	}
	var parts []string
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return "", false, pipelineerr.New(pipelineerr.KindArchive, "extract", "path escape attempt: "+rawName)
		}
		if seg == "" || seg == "." {
			continue
		}
		parts = append(parts, seg)
	}
	if stripPrefix > 0 {
		if stripPrefix >= len(parts) {
			return "", true, nil
		}
		parts = parts[stripPrefix:]
	}
	if len(parts) == 0 {
		return "", true, nil
	}

	joined := filepath.Join(parts...)
	full := filepath.Join(dest, joined)

	destClean := filepath.Clean(dest)
	fullClean := filepath.Clean(full)
	if fullClean != destClean && !strings.HasPrefix(fullClean, destClean+string(filepath.Separator)) {
		return "", false, pipelineerr.New(pipelineerr.KindArchive, "extract", "path escape attempt: "+rawName)
	}
	return full, false, nil
}

// findRootDir reports the single top-level directory under dest, if
// extraction produced exactly one entry and it is a directory. Used to
// detect archives that wrap everything in a single "pkg-1.0.0/" folder.
func findRootDir(dest string) string {
	entries, err := os.ReadDir(dest)
	if err != nil || len(entries) != 1 {
		return ""
	}
	if !entries[0].IsDir() {
		return ""
	}
	return filepath.Join(dest, entries[0].Name())
}
