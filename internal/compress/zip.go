package compress

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/drstein77/salesdash/internal/sheet"
)

// ErrNoSpreadsheet is returned when an archive holds no supported spreadsheet.
var ErrNoSpreadsheet = errors.New("no spreadsheet found in the archive")

// ZipReader implements io.ReadCloser for reading the first spreadsheet of a ZIP archive.
type ZipReader struct {
	current io.ReadCloser
	name    string
}

// NewZipReader creates a new ZipReader, extracting the first spreadsheet found in the ZIP archive.
func NewZipReader(r io.ReadCloser) (*ZipReader, error) {
	defer r.Close()

	// Read the entire archive into a buffer
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return nil, fmt.Errorf("opening zip archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if sheet.Supported(f.Name) {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", f.Name, err)
			}
			return &ZipReader{current: rc, name: f.Name}, nil
		}
	}

	return nil, ErrNoSpreadsheet
}

// Name returns the archive path of the extracted spreadsheet.
func (z *ZipReader) Name() string {
	return z.name
}

// Read reads data from the extracted spreadsheet.
func (z *ZipReader) Read(p []byte) (int, error) {
	return z.current.Read(p)
}

// Close closes the extracted spreadsheet.
func (z *ZipReader) Close() error {
	return z.current.Close()
}

// ZipWriter packages several files into a ZIP archive.
type ZipWriter struct {
	zipWriter *zip.Writer
	file      io.Writer
}

func NewZipWriter(w io.Writer) *ZipWriter {
	return &ZipWriter{zipWriter: zip.NewWriter(w)}
}

// Next starts a new file inside the archive; writes go to it until the next call.
func (z *ZipWriter) Next(fileName string) error {
	f, err := z.zipWriter.Create(fileName)
	if err != nil {
		return fmt.Errorf("adding %s: %w", fileName, err)
	}
	z.file = f
	return nil
}

// Write writes data to the current file inside the ZIP archive.
func (z *ZipWriter) Write(p []byte) (int, error) {
	if z.file == nil {
		return 0, errors.New("zip writer: no file started")
	}
	return z.file.Write(p)
}

// Close closes the ZIP archive.
func (z *ZipWriter) Close() error {
	return z.zipWriter.Close()
}
