// Package archive implements the Archive Extractor: safe unpacking of a
// submitted ZIP/TAR/TAR.GZ payload into a job's working directory,
// rejecting path traversal, oversized expansion ("zip bombs"), and
// excessive member counts per spec §4.3.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	texerrors "github.com/texforge/texforge/pkg/errors"
	"github.com/texforge/texforge/pkg/logger"
)

// Limits configures the extractor's safety policy. Zero values fall
// back to the defaults named in spec §4.3.
type Limits struct {
	MaxExpansionRatio     float64
	MaxExpandedBytes      int64
	MaxMemberCount        int
	MaxPathComponentBytes int
	Timeout               time.Duration
}

// DefaultLimits matches the contractual defaults.
var DefaultLimits = Limits{
	MaxExpansionRatio:     10.0,
	MaxExpandedBytes:      2 * 1024 * 1024 * 1024,
	MaxMemberCount:        50000,
	MaxPathComponentBytes: 255,
	Timeout:               120 * time.Second,
}

// member is one entry discovered in the archive prior to extraction.
type member struct {
	name    string // cleaned, relative, slash-separated
	size    int64
	isDir   bool
	isLink  bool
	reader  func() (io.ReadCloser, error)
}

// Extractor unpacks submitted archives into a destination directory.
type Extractor struct {
	limits Limits
	logger *logger.Logger
}

// New creates an Extractor with the given limits (zero fields replaced
// by DefaultLimits).
func New(limits Limits, log *logger.Logger) *Extractor {
	if limits.MaxExpansionRatio <= 0 {
		limits.MaxExpansionRatio = DefaultLimits.MaxExpansionRatio
	}
	if limits.MaxExpandedBytes <= 0 {
		limits.MaxExpandedBytes = DefaultLimits.MaxExpandedBytes
	}
	if limits.MaxMemberCount <= 0 {
		limits.MaxMemberCount = DefaultLimits.MaxMemberCount
	}
	if limits.MaxPathComponentBytes <= 0 {
		limits.MaxPathComponentBytes = DefaultLimits.MaxPathComponentBytes
	}
	if limits.Timeout <= 0 {
		limits.Timeout = DefaultLimits.Timeout
	}
	return &Extractor{limits: limits, logger: log.WithField("component", "archive-extractor")}
}

// Format identifies the archive container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
	FormatTar
)

// DetectFormat inspects the file's leading bytes; it does not trust the
// filename extension alone.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	magic := make([]byte, 262)
	n, _ := io.ReadFull(f, magic)
	magic = magic[:n]

	switch {
	case len(magic) >= 4 && magic[0] == 'P' && magic[1] == 'K':
		return FormatZip, nil
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		return FormatTarGz, nil
	case len(magic) >= 262 && string(magic[257:262]) == "ustar":
		return FormatTar, nil
	default:
		// Tar has no fixed magic at offset 0 for all variants; fall back
		// to extension as a last resort.
		switch strings.ToLower(filepath.Ext(path)) {
		case ".tar":
			return FormatTar, nil
		case ".gz", ".tgz":
			return FormatTarGz, nil
		case ".zip":
			return FormatZip, nil
		}
		return FormatUnknown, fmt.Errorf("archive: unrecognized format for %s", path)
	}
}

// Extract unpacks archivePath into destDir, which must already exist
// and be empty. Returns the number of members extracted.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.limits.Timeout)
	defer cancel()

	format, err := DetectFormat(archivePath)
	if err != nil {
		return 0, texerrors.WrapArchiveError(archivePath, "detect-format", texerrors.ErrUnsafeArchive)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return 0, texerrors.WrapArchiveError(archivePath, "stat", err)
	}

	members, closeFn, err := e.listMembers(archivePath, format)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	if len(members) > e.limits.MaxMemberCount {
		return 0, texerrors.WrapArchiveError(archivePath, "member-count", texerrors.ErrUnsafeArchive)
	}

	var expandedBytes int64
	toKeep := make([]member, 0, len(members))
	for _, m := range members {
		if m.isLink {
			// Symbolic links are dropped, not recreated (spec §4.3).
			continue
		}
		if err := validateMemberPath(m.name, e.limits.MaxPathComponentBytes); err != nil {
			return 0, texerrors.WrapArchiveError(archivePath, "path-policy", texerrors.ErrUnsafeArchive)
		}
		expandedBytes += m.size
		toKeep = append(toKeep, m)
	}

	if expandedBytes > e.limits.MaxExpandedBytes {
		return 0, texerrors.WrapArchiveError(archivePath, "bomb-guard-absolute", texerrors.ErrUnsafeArchive)
	}
	if info.Size() > 0 && float64(expandedBytes) > float64(info.Size())*e.limits.MaxExpansionRatio {
		return 0, texerrors.WrapArchiveError(archivePath, "bomb-guard-ratio", texerrors.ErrUnsafeArchive)
	}

	// Bulk-vs-member-by-member is a policy distinction in spec §4.3; in
	// this implementation both paths funnel through the same safe
	// per-member write loop, and "bulk" is computed only for the log
	// line below.
	bulk := len(members) >= 50 && float64(len(toKeep))/float64(len(members)) >= 0.8
	e.logger.Debug("extracting archive", "members", len(toKeep), "bulk", bulk, "format", format)

	for _, m := range toKeep {
		select {
		case <-ctx.Done():
			return 0, texerrors.WrapArchiveError(archivePath, "extract", ctx.Err())
		default:
		}

		target := filepath.Join(destDir, filepath.FromSlash(m.name))
		if m.isDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, texerrors.WrapFilesystemError(target, "mkdir", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, texerrors.WrapFilesystemError(target, "mkdir-parent", err)
		}

		if err := e.writeMember(ctx, m, target); err != nil {
			return 0, err
		}
	}

	return len(toKeep), nil
}

func (e *Extractor) writeMember(ctx context.Context, m member, target string) error {
	src, err := m.reader()
	if err != nil {
		return texerrors.WrapArchiveError(m.name, "open-member", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return texerrors.WrapFilesystemError(target, "create", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		return texerrors.WrapArchiveError(m.name, "copy", err)
	}
	return nil
}

// ctxReader aborts an io.Copy promptly on context cancellation so the
// extractor's timeout applies even mid-member on a slow/huge file.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	default:
	}
	return c.r.Read(p)
}

// validateMemberPath rejects absolute paths, traversal above the
// extraction root, and over-long path components.
func validateMemberPath(name string, maxComponentBytes int) error {
	if name == "" {
		return errors.New("empty member name")
	}
	cleaned := filepath.ToSlash(filepath.Clean(name))
	if filepath.IsAbs(name) || strings.HasPrefix(cleaned, "/") {
		return errors.New("absolute member path")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return errors.New("member path escapes extraction root")
	}
	for _, part := range strings.Split(cleaned, "/") {
		if len(part) > maxComponentBytes {
			return errors.New("member path component too long")
		}
	}
	return nil
}

func (e *Extractor) listMembers(archivePath string, format Format) ([]member, func(), error) {
	switch format {
	case FormatZip:
		return listZipMembers(archivePath)
	case FormatTar, FormatTarGz:
		return listTarMembers(archivePath, format == FormatTarGz)
	default:
		return nil, func() {}, texerrors.WrapArchiveError(archivePath, "format", texerrors.ErrUnsafeArchive)
	}
}

func listZipMembers(path string) ([]member, func(), error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, func() {}, texerrors.WrapArchiveError(path, "open-zip", err)
	}

	members := make([]member, 0, len(zr.File))
	for _, f := range zr.File {
		f := f
		isLink := f.Mode()&os.ModeSymlink != 0
		members = append(members, member{
			name:   f.Name,
			size:   int64(f.UncompressedSize64),
			isDir:  f.FileInfo().IsDir(),
			isLink: isLink,
			reader: func() (io.ReadCloser, error) { return f.Open() },
		})
	}
	return members, func() { zr.Close() }, nil
}

// listTarMembers reads the whole tar stream into memory-backed entries
// up front so that member count/size can be validated before any bytes
// are written to disk; for the bounded archive sizes this engine
// accepts (<=2GiB by policy) this is an acceptable trade against
// re-opening the stream twice.
func listTarMembers(path string, gzipped bool) ([]member, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, func() {}, texerrors.WrapArchiveError(path, "open-tar", err)
	}

	var r io.Reader = f
	var gz *gzip.Reader
	if gzipped {
		gz, err = gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, func() {}, texerrors.WrapArchiveError(path, "open-gzip", err)
		}
		r = gz
	}

	tr := tar.NewReader(r)
	var members []member
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if gz != nil {
				gz.Close()
			}
			f.Close()
			return nil, func() {}, texerrors.WrapArchiveError(path, "read-tar-header", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			if gz != nil {
				gz.Close()
			}
			f.Close()
			return nil, func() {}, texerrors.WrapArchiveError(path, "read-tar-body", err)
		}
		body := data

		members = append(members, member{
			name:   hdr.Name,
			size:   hdr.Size,
			isDir:  hdr.Typeflag == tar.TypeDir,
			isLink: hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink,
			reader: func() (io.ReadCloser, error) { return io.NopCloser(newBytesReader(body)), nil },
		})
	}

	closeFn := func() {
		if gz != nil {
			gz.Close()
		}
		f.Close()
	}
	return members, closeFn, nil
}
