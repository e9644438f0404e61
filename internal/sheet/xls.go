package sheet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/extrame/ole2"

	"github.com/drstein77/salesdash/internal/models"
)

// BIFF8 record identifiers read from a worksheet substream.
const (
	recFormula    = 0x0006
	recEOF        = 0x000A
	recContinue   = 0x003C
	recBoundSheet = 0x0085
	recMulRK      = 0x00BD
	recSST        = 0x00FC
	recLabelSST   = 0x00FD
	recNumber     = 0x0203
	recLabel      = 0x0204
	recBoolErr    = 0x0205
	recString     = 0x0207
	recRK         = 0x027E
	recBOF        = 0x0809
)

const biff8 = 0x0600

var errTruncated = errors.New("truncated record")

// readXLS reads the first worksheet of an Excel 97-2003 workbook. Cells keep
// the type of the record that stored them: number formats are not applied,
// so date cells stay serial numbers and currency cells stay numbers.
func readXLS(data []byte) (rows [][]models.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("malformed workbook: %v", r)
		}
	}()

	stream, err := workbookStream(data)
	if err != nil {
		return nil, err
	}
	book, err := parseGlobals(stream)
	if err != nil {
		return nil, err
	}
	return book.readSheet(stream)
}

func workbookStream(data []byte) ([]byte, error) {
	doc, err := ole2.Open(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	dir, err := doc.ListDir()
	if err != nil {
		return nil, fmt.Errorf("listing workbook streams: %w", err)
	}

	var book, root *ole2.File
	for _, f := range dir {
		switch f.Name() {
		case "Workbook":
			book = f
		case "Root Entry":
			root = f
		}
	}
	if book == nil || root == nil {
		return nil, errors.New("no Excel 97-2003 workbook stream found")
	}

	stream, err := io.ReadAll(doc.OpenFile(book, root))
	if err != nil {
		return nil, fmt.Errorf("reading workbook stream: %w", err)
	}
	if int(book.Size) < len(stream) {
		stream = stream[:book.Size]
	}
	return stream, nil
}

type record struct {
	id   uint16
	data []byte
}

type recordReader struct {
	data []byte
	pos  int
}

func (r *recordReader) next() (record, bool) {
	if r.pos+4 > len(r.data) {
		return record{}, false
	}
	id := binary.LittleEndian.Uint16(r.data[r.pos:])
	size := int(binary.LittleEndian.Uint16(r.data[r.pos+2:]))
	start := r.pos + 4
	if start+size > len(r.data) {
		return record{}, false
	}
	r.pos = start + size
	return record{id: id, data: r.data[start:r.pos]}, true
}

func (r *recordReader) peek() uint16 {
	if r.pos+2 > len(r.data) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.data[r.pos:])
}

type workbookGlobals struct {
	sst      []string
	sheetPos int
}

func parseGlobals(stream []byte) (*workbookGlobals, error) {
	r := &recordReader{data: stream}
	bof, ok := r.next()
	if !ok || bof.id != recBOF || len(bof.data) < 2 {
		return nil, errors.New("missing workbook BOF record")
	}
	if v := binary.LittleEndian.Uint16(bof.data); v != biff8 {
		return nil, fmt.Errorf("unsupported BIFF version %#x", v)
	}

	g := &workbookGlobals{sheetPos: -1}
	for {
		rec, ok := r.next()
		if !ok {
			return nil, errors.New("workbook globals end without EOF record")
		}
		switch rec.id {
		case recEOF:
			if g.sheetPos < 0 {
				return nil, errors.New("no worksheet found")
			}
			return g, nil
		case recBoundSheet:
			// Sheet type 0 is a worksheet; charts and macro sheets are skipped.
			if g.sheetPos < 0 && len(rec.data) >= 6 && rec.data[5] == 0 {
				g.sheetPos = int(binary.LittleEndian.Uint32(rec.data))
			}
		case recSST:
			segments := [][]byte{rec.data}
			for r.peek() == recContinue {
				cont, _ := r.next()
				segments = append(segments, cont.data)
			}
			sst, err := parseSST(segments)
			if err != nil {
				return nil, fmt.Errorf("reading shared strings: %w", err)
			}
			g.sst = sst
		}
	}
}

func (g *workbookGlobals) readSheet(stream []byte) ([][]models.Value, error) {
	if g.sheetPos >= len(stream) {
		return nil, errors.New("worksheet offset out of range")
	}
	r := &recordReader{data: stream, pos: g.sheetPos}
	if bof, ok := r.next(); !ok || bof.id != recBOF {
		return nil, errors.New("missing worksheet BOF record")
	}

	var (
		grid    cellGrid
		depth   int
		pending *cellPos
	)
	for {
		rec, ok := r.next()
		if !ok {
			break
		}
		// Embedded charts carry their own BOF/EOF pair.
		if rec.id == recBOF {
			depth++
			continue
		}
		if rec.id == recEOF {
			if depth == 0 {
				break
			}
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		// A formula with a text result is followed by a STRING record holding it.
		if rec.id == recString {
			if pending != nil {
				s, err := (&stringReader{segments: [][]byte{rec.data}}).unicodeString()
				if err != nil {
					return nil, fmt.Errorf("reading formula result at row %d: %w", pending.row+1, err)
				}
				grid.set(pending.row, pending.col, textValue(s))
				pending = nil
			}
			continue
		}
		if len(rec.data) < 6 {
			continue
		}

		pos := cellPos{row: int(binary.LittleEndian.Uint16(rec.data)), col: int(binary.LittleEndian.Uint16(rec.data[2:]))}
		switch rec.id {
		case recNumber:
			if len(rec.data) >= 14 {
				grid.set(pos.row, pos.col, models.NumberValue(math.Float64frombits(binary.LittleEndian.Uint64(rec.data[6:]))))
			}
		case recRK:
			if len(rec.data) >= 10 {
				grid.set(pos.row, pos.col, models.NumberValue(rkNumber(binary.LittleEndian.Uint32(rec.data[6:]))))
			}
		case recMulRK:
			// xf (2 bytes) and RK value (4 bytes) per column, last column index at the end.
			cells := rec.data[4 : len(rec.data)-2]
			for i := 0; i+6 <= len(cells); i += 6 {
				grid.set(pos.row, pos.col+i/6, models.NumberValue(rkNumber(binary.LittleEndian.Uint32(cells[i+2:]))))
			}
		case recLabelSST:
			if len(rec.data) >= 10 {
				if idx := int(binary.LittleEndian.Uint32(rec.data[6:])); idx < len(g.sst) {
					grid.set(pos.row, pos.col, textValue(g.sst[idx]))
				}
			}
		case recLabel:
			s, err := (&stringReader{segments: [][]byte{rec.data[6:]}}).unicodeString()
			if err != nil {
				return nil, fmt.Errorf("reading label at row %d: %w", pos.row+1, err)
			}
			grid.set(pos.row, pos.col, textValue(s))
		case recBoolErr:
			// Error cells (#DIV/0!, #N/A, ...) stay empty.
			if len(rec.data) >= 8 && rec.data[7] == 0 {
				grid.set(pos.row, pos.col, boolValue(rec.data[6] != 0))
			}
		case recFormula:
			if len(rec.data) < 14 {
				continue
			}
			result := rec.data[6:14]
			if result[6] != 0xFF || result[7] != 0xFF {
				grid.set(pos.row, pos.col, models.NumberValue(math.Float64frombits(binary.LittleEndian.Uint64(result))))
				continue
			}
			switch result[0] {
			case 0:
				pending = &pos
			case 1:
				grid.set(pos.row, pos.col, boolValue(result[2] != 0))
			}
		}
	}
	return grid.rows, nil
}

type cellPos struct {
	row, col int
}

// cellGrid collects cells by position. Rows and columns that never receive a
// value are left empty.
type cellGrid struct {
	rows [][]models.Value
}

func (g *cellGrid) set(row, col int, v models.Value) {
	if v.IsMissing() {
		return
	}
	for len(g.rows) <= row {
		g.rows = append(g.rows, nil)
	}
	for len(g.rows[row]) <= col {
		g.rows[row] = append(g.rows[row], models.EmptyValue())
	}
	g.rows[row][col] = v
}

// rkNumber decodes an RK value: a 30-bit integer or the high 30 bits of a
// float64, optionally scaled by 1/100.
func rkNumber(rk uint32) float64 {
	var v float64
	if rk&0x2 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&^0x3) << 32)
	}
	if rk&0x1 != 0 {
		v /= 100
	}
	return v
}

// stringReader reads Unicode strings from a record and its CONTINUE
// records. A string whose characters cross into the next segment restates
// its encoding in one leading byte there.
type stringReader struct {
	segments [][]byte
	seg      int
	pos      int
}

func (r *stringReader) read(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if r.pos >= len(r.segments[r.seg]) {
			if r.seg+1 >= len(r.segments) {
				return nil, errTruncated
			}
			r.seg, r.pos = r.seg+1, 0
		}
		take := min(n-len(out), len(r.segments[r.seg])-r.pos)
		out = append(out, r.segments[r.seg][r.pos:r.pos+take]...)
		r.pos += take
	}
	return out, nil
}

func (r *stringReader) chars(n int, wide bool) (string, error) {
	units := make([]uint16, 0, n)
	for n > 0 {
		if r.pos >= len(r.segments[r.seg]) {
			if r.seg+1 >= len(r.segments) {
				return "", errTruncated
			}
			r.seg, r.pos = r.seg+1, 0
			flags, err := r.read(1)
			if err != nil {
				return "", err
			}
			wide = flags[0]&0x1 != 0
			continue
		}
		seg := r.segments[r.seg][r.pos:]
		if wide {
			take := min(n, len(seg)/2)
			if take == 0 {
				return "", errTruncated
			}
			for i := 0; i < take; i++ {
				units = append(units, binary.LittleEndian.Uint16(seg[2*i:]))
			}
			r.pos += 2 * take
			n -= take
		} else {
			take := min(n, len(seg))
			for _, b := range seg[:take] {
				units = append(units, uint16(b))
			}
			r.pos += take
			n -= take
		}
	}
	return string(utf16.Decode(units)), nil
}

// unicodeString reads a string with a 16-bit character count, skipping any
// rich text runs and phonetic data after the characters.
func (r *stringReader) unicodeString() (string, error) {
	head, err := r.read(3)
	if err != nil {
		return "", err
	}
	count, flags := int(binary.LittleEndian.Uint16(head)), head[2]

	var extra int
	if flags&0x8 != 0 {
		b, err := r.read(2)
		if err != nil {
			return "", err
		}
		extra += 4 * int(binary.LittleEndian.Uint16(b))
	}
	if flags&0x4 != 0 {
		b, err := r.read(4)
		if err != nil {
			return "", err
		}
		extra += int(binary.LittleEndian.Uint32(b))
	}

	s, err := r.chars(count, flags&0x1 != 0)
	if err != nil {
		return "", err
	}
	if _, err := r.read(extra); err != nil {
		return "", err
	}
	return s, nil
}

func parseSST(segments [][]byte) ([]string, error) {
	r := &stringReader{segments: segments}
	head, err := r.read(8)
	if err != nil {
		return nil, err
	}
	unique := int(binary.LittleEndian.Uint32(head[4:]))

	sst := make([]string, 0, min(unique, 1<<16))
	for i := 0; i < unique; i++ {
		s, err := r.unicodeString()
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		sst = append(sst, s)
	}
	return sst, nil
}
