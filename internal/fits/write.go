// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package fits

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/espdev/itkcvbf/internal/convert"
)

// Writes an in-memory FITS image to a file with given filename.
// Creates/overwrites the file if necessary
func (fits *Image) WriteFile(fileName string) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := fits.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Writes an in-memory FITS image to an io.Writer, storing samples in their original representation
func (fits *Image) Write(w io.Writer) error {
	bitpix, bzero := fits.Kind.Bitpix()

	sb := strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	writeInt(&sb, "BITPIX", int64(bitpix), fits.Kind.String()+" samples")
	writeInt(&sb, "NAXIS", int64(len(fits.Naxisn)), "[1] Number of axes")
	for i, n := range fits.Naxisn {
		writeInt(&sb, fmt.Sprintf("NAXIS%d", i+1), int64(n), "[1] Axis size")
	}
	if bzero != 0 {
		writeFloat(&sb, "BZERO", bzero, "[1] Zero offset")
		writeFloat(&sb, "BSCALE", 1, "[1] Scale factor")
	}
	fits.Header.write(&sb)
	writeEnd(&sb)
	padBlock(&sb, ' ')

	bw := bufio.NewWriterSize(w, bufLen)
	if _, err := bw.WriteString(sb.String()); err != nil {
		return err
	}
	n, err := writeSamples(bw, fits.Data, fits.Kind)
	if err != nil {
		return err
	}
	// pad the data unit with zeros
	if rem := n % fitsBlockSize; rem != 0 {
		if _, err := bw.Write(make([]byte, fitsBlockSize-rem)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Writes the remaining header keys in sorted order, followed by comments and history
func (h *Header) write(w io.Writer) {
	for _, k := range sortedKeys(h.Bools) {
		writeBool(w, k, h.Bools[k], "")
	}
	for _, k := range sortedKeys(h.Ints) {
		writeInt(w, k, int64(h.Ints[k]), "")
	}
	for _, k := range sortedKeys(h.Floats) {
		writeFloat(w, k, float64(h.Floats[k]), "")
	}
	for _, k := range sortedKeys(h.Strings) {
		writeString(w, k, h.Strings[k], "")
	}
	for _, k := range sortedKeys(h.Dates) {
		writeString(w, k, h.Dates[k], "")
	}
	for _, c := range h.Comments {
		writeText(w, "COMMENT", c)
	}
	for _, c := range h.History {
		writeText(w, "HISTORY", c)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Writes a FITS header boolean value
func writeBool(w io.Writer, key string, value bool, comment string) {
	v := "F"
	if value {
		v = "T"
	}
	fmt.Fprintf(w, "%-8s= %20s / %-47s", clip(key, 8), v, clip(comment, 47))
}

// Writes a FITS header integer value
func writeInt(w io.Writer, key string, value int64, comment string) {
	fmt.Fprintf(w, "%-8s= %20d / %-47s", clip(key, 8), value, clip(comment, 47))
}

// Writes a FITS header floating point value. Always includes a decimal point or exponent,
// so the value is parsed back as a float
func writeFloat(w io.Writer, key string, value float64, comment string) {
	s := fmt.Sprintf("%.10G", value)
	if !strings.Contains(s, ".") {
		if i := strings.Index(s, "E"); i >= 0 {
			s = s[:i] + "." + s[i:]
		} else {
			s += "."
		}
	}
	fmt.Fprintf(w, "%-8s= %20s / %-47s", clip(key, 8), s, clip(comment, 47))
}

// Writes a FITS header string value, escaping quotes. Values are truncated to one line
func writeString(w io.Writer, key, value, comment string) {
	value = strings.ReplaceAll(clip(value, 60), "'", "''")
	if len(value) > 68 {
		value = value[:68]
	}
	s := fmt.Sprintf("'%-8s'", value)
	line := fmt.Sprintf("%-8s= %-20s / %s", clip(key, 8), s, comment)
	fmt.Fprintf(w, "%-80s", clip(line, HeaderLineSize))
}

// Writes a COMMENT or HISTORY line
func writeText(w io.Writer, key, text string) {
	fmt.Fprintf(w, "%-8s  %-70s", key, clip(text, 70))
}

// Writes a FITS header end record
func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "%-80s", "END")
}

// Pads the builder to a multiple of the FITS block size
func padBlock(sb *strings.Builder, c byte) {
	if rem := sb.Len() % fitsBlockSize; rem > 0 {
		sb.WriteString(strings.Repeat(string(c), fitsBlockSize-rem))
	}
}

// Writes FITS binary body data in network byte order, stored as the given kind.
// Values saturate at the range of the kind, and NaNs become zero. Returns the number of bytes written.
func writeSamples(w io.Writer, data []float32, kind convert.SampleKind) (n int, err error) {
	bitpix, _ := kind.Bitpix()
	bytesPerValue := int(bitpix)
	if bytesPerValue < 0 {
		bytesPerValue = -bytesPerValue
	}
	bytesPerValue /= 8

	var encode func(b []byte, i int)
	switch kind {
	case convert.Uint8:
		vals := convert.FromFloat32[uint8](data)
		encode = func(b []byte, i int) { b[0] = vals[i] }
	case convert.Int8:
		vals := convert.FromFloat32[int8](data)
		encode = func(b []byte, i int) { b[0] = uint8(vals[i]) ^ 0x80 }
	case convert.Uint16:
		vals := convert.FromFloat32[uint16](data)
		encode = func(b []byte, i int) { binary.BigEndian.PutUint16(b, vals[i]^0x8000) }
	case convert.Int16:
		vals := convert.FromFloat32[int16](data)
		encode = func(b []byte, i int) { binary.BigEndian.PutUint16(b, uint16(vals[i])) }
	case convert.Uint32:
		vals := convert.FromFloat32[uint32](data)
		encode = func(b []byte, i int) { binary.BigEndian.PutUint32(b, vals[i]^0x80000000) }
	case convert.Int32:
		vals := convert.FromFloat32[int32](data)
		encode = func(b []byte, i int) { binary.BigEndian.PutUint32(b, uint32(vals[i])) }
	case convert.Int64:
		vals := convert.FromFloat32[int64](data)
		encode = func(b []byte, i int) { binary.BigEndian.PutUint64(b, uint64(vals[i])) }
	case convert.Float64:
		encode = func(b []byte, i int) {
			d := float64(data[i])
			if math.IsNaN(d) {
				d = 0
			}
			binary.BigEndian.PutUint64(b, math.Float64bits(d))
		}
	default:
		// replace NaNs with zeros for compatibility with other software
		encode = func(b []byte, i int) {
			d := data[i]
			if d != d {
				d = 0
			}
			binary.BigEndian.PutUint32(b, math.Float32bits(d))
		}
	}

	buf := make([]byte, bufLen)
	valuesPerBuf := bufLen / bytesPerValue
	for block := 0; block < len(data); block += valuesPerBuf {
		size := len(data) - block
		if size > valuesPerBuf {
			size = valuesPerBuf
		}
		for offset := 0; offset < size; offset++ {
			encode(buf[offset*bytesPerValue:], block+offset)
		}
		written, err := w.Write(buf[:size*bytesPerValue])
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
