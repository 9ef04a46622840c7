package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
)

// MetadataMemberPrefix marks archive members written by archivers rather than
// users, e.g. "__MACOSX/".
const MetadataMemberPrefix = "__"

// FirstCorruptMember reads every member of the archive to EOF so that its stored
// CRC-32 is verified, and returns the name of the first member that fails.
// An empty string means the archive is intact.
func FirstCorruptMember(files []*zip.File) string {
	for _, f := range files {
		if err := checkMember(f); err != nil {
			log.Printf("zipper: member %s failed integrity check: %v", f.Name, err)
			return f.Name
		}
	}
	return ""
}

func checkMember(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

// IsMetadataMember reports whether an archive member name is archiver bookkeeping.
func IsMetadataMember(name string) bool {
	return strings.HasPrefix(name, MetadataMemberPrefix)
}

// ZipSource is one file to place in an exported archive.
type ZipSource struct {
	Name     string // name inside the archive
	FullPath string // absolute path on disk
}

// WriteZip streams the given files into a zip archive written to w. Files that
// cannot be opened are logged and skipped; duplicate names get a numeric suffix.
// Returns the number of files written.
func WriteZip(w io.Writer, sources []ZipSource) (int, error) {
	zipWriter := zip.NewWriter(w)

	used := make(map[string]int)
	written := 0
	for _, src := range sources {
		name := uniqueMemberName(used, src.Name)

		fileToZip, err := os.Open(src.FullPath)
		if err != nil {
			log.Printf("zipper: Failed to open file %s for zipping: %v. Skipping.", src.FullPath, err)
			continue
		}

		writer, err := zipWriter.Create(name)
		if err != nil {
			fileToZip.Close()
			zipWriter.Close()
			return written, fmt.Errorf("failed to create entry %s in zip: %w", name, err)
		}

		_, err = io.Copy(writer, fileToZip)
		fileToZip.Close()
		if err != nil {
			zipWriter.Close()
			return written, fmt.Errorf("failed to write file %s to zip: %w", name, err)
		}
		written++
	}

	if err := zipWriter.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize zip writer: %w", err)
	}
	return written, nil
}

func uniqueMemberName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
