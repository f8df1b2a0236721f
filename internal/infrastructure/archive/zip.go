package archive

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
)

// ZipBuilder writes asset files into a zip stream
type ZipBuilder struct {
	// Modified is stamped on every entry so equal inputs give equal archives.
	Modified time.Time
}

func NewZipBuilder() *ZipBuilder {
	return &ZipBuilder{Modified: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Build writes files (name -> content) to w in name order
func (b *ZipBuilder) Build(files map[string][]byte, w io.Writer) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: b.Modified,
		})
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := fw.Write(files[name]); err != nil {
			return fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}
