package compress

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"

	"github.com/drstein77/salesdash/internal/sheet"
)

// TarReader implements io.ReadCloser for reading the first spreadsheet of a TAR archive.
type TarReader struct {
	current io.Reader
	name    string
	eof     bool
}

// NewTarReader creates a new TarReader, extracting the first spreadsheet found in the TAR archive.
func NewTarReader(r io.ReadCloser) (*TarReader, error) {
	defer r.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}

	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg && sheet.Supported(header.Name) {
			return &TarReader{current: tr, name: header.Name}, nil
		}
	}

	return nil, ErrNoSpreadsheet
}

// Name returns the archive path of the extracted spreadsheet.
func (t *TarReader) Name() string {
	return t.name
}

// Read reads data from the extracted spreadsheet.
func (t *TarReader) Read(p []byte) (int, error) {
	if t.eof {
		return 0, io.EOF
	}
	n, err := t.current.Read(p)
	if err == io.EOF {
		t.eof = true
	}
	return n, err
}

// Close ends reading; the archive is already buffered in memory.
func (t *TarReader) Close() error {
	return nil
}
