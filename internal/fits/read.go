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
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/espdev/itkcvbf/internal/convert"
)

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

func NewImageFromFile(fileName string, id int, logWriter io.Writer) (i *Image, err error) {
	i = NewImage()
	i.ID = id
	return i, i.ReadFile(fileName, true, logWriter)
}

// Read FITS data from the file with the given name. Decompresses gzip if .gz or gzip suffix is present,
// and reads TIFF if a .tif or .tiff suffix is present. Reads metadata only (fast) if readData is false.
func (fits *Image) ReadFile(fileName string, readData bool, logWriter io.Writer) error {
	fits.FileName = fileName
	lExt := strings.ToLower(path.Ext(fileName))
	if lExt == ".tif" || lExt == ".tiff" {
		return fits.ReadTIFFFile(fileName)
	}

	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, bufLen)
	if lExt == ".gz" || lExt == ".gzip" {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%d: %s: %w", fits.ID, fileName, err)
		}
		defer gz.Close()
		r = gz
	}
	return fits.Read(r, readData, logWriter)
}

func (fits *Image) PopHeaderInt32(key string) (res int32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

func (fits *Image) PopHeaderInt32OrFloat(key string) (res float32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return float32(val), nil
	} else if val, ok := fits.Header.Floats[key]; ok {
		delete(fits.Header.Floats, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

func (fits *Image) Read(f io.Reader, readData bool, logWriter io.Writer) (err error) {
	if err = fits.Header.read(f, fits.ID, logWriter); err != nil {
		return err
	}

	// check mandatory fields as per standard
	if !fits.Header.Bools["SIMPLE"] {
		return fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", fits.ID)
	}
	delete(fits.Header.Bools, "SIMPLE")

	if fits.Bitpix, err = fits.PopHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = fits.PopHeaderInt32("NAXIS"); err != nil {
		return err
	}
	if naxis < 1 {
		return fmt.Errorf("%d: FITS file without image data, NAXIS=%d", fits.ID, naxis)
	}
	fits.Naxisn = make([]int32, naxis)
	fits.Pixels = 1
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = fits.PopHeaderInt32(name); err != nil {
			return err
		}
		if nai <= 0 {
			return fmt.Errorf("%d: invalid axis size %s=%d", fits.ID, name, nai)
		}
		fits.Naxisn[i-1] = nai
		fits.Pixels *= int(nai)
	}

	if fits.Bzero, err = fits.PopHeaderInt32OrFloat("BZERO"); err != nil {
		fits.Bzero = 0
	}
	if fits.Bscale, err = fits.PopHeaderInt32OrFloat("BSCALE"); err != nil {
		fits.Bscale = 1
	}
	if fits.Kind, err = convert.KindFromBitpix(fits.Bitpix, float64(fits.Bzero)); err != nil {
		return fmt.Errorf("%d: %w", fits.ID, err)
	}
	if fits.Bscale != 1 {
		// scaled integers are not representable in their storage type any more
		fits.Kind = convert.Float32
	}

	if !readData {
		return nil
	}
	return fits.readData(f, logWriter)
}

const bufLen int = 16 * 1024 // input buffer length for reading from file

// Decodes one big-endian sample of the given BITPIX
func decoderFor(bitpix int32) func(b []byte) float64 {
	switch bitpix {
	case 8:
		return func(b []byte) float64 { return float64(b[0]) }
	case 16:
		return func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }
	case 32:
		return func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }
	case 64:
		return func(b []byte) float64 { return float64(int64(binary.BigEndian.Uint64(b))) }
	case -32:
		return func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }
	case -64:
		return func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) }
	}
	return nil
}

// Reads image data, converting from network byte order to float32 and applying Bzero and Bscale.
// Sets Bzero to 0 and Bscale to 1 afterwards.
func (fits *Image) readData(r io.Reader, logWriter io.Writer) error {
	decode := decoderFor(fits.Bitpix)
	if decode == nil {
		return fmt.Errorf("%d: Unknown BITPIX value %d", fits.ID, fits.Bitpix)
	}
	if fits.Bitpix == 32 || fits.Bitpix == 64 || fits.Bitpix == -64 {
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting %s to float32 values\n", fits.ID, fits.Kind)
	}

	bytesPerValue := int(fits.Bitpix)
	if bytesPerValue < 0 {
		bytesPerValue = -bytesPerValue
	}
	bytesPerValue /= 8
	bzero, bscale := float64(fits.Bzero), float64(fits.Bscale)

	fits.Data = make([]float32, fits.Pixels)
	buf := make([]byte, bufLen)
	valuesPerBuf := bufLen / bytesPerValue
	for dataIndex := 0; dataIndex < len(fits.Data); {
		n := len(fits.Data) - dataIndex
		if n > valuesPerBuf {
			n = valuesPerBuf
		}
		if _, err := io.ReadFull(r, buf[:n*bytesPerValue]); err != nil {
			return fmt.Errorf("%d: reading image data: %w", fits.ID, err)
		}
		for i := 0; i < n; i++ {
			fits.Data[dataIndex+i] = float32(decode(buf[i*bytesPerValue:])*bscale + bzero)
		}
		dataIndex += n
	}
	fits.Bzero, fits.Bscale = 0, 1 // reflect that data values incorporate these now
	return nil
}

func (h *Header) read(r io.Reader, id int, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)

	for h.Length = 0; !h.End; {
		// read next header unit
		bytesRead, err := io.ReadFull(r, buf)
		if err != nil {
			return fmt.Errorf("%d: reading FITS header: %w", id, err)
		}
		h.Length += int32(bytesRead)

		// parse all lines in this header unit
		for lineNo := 0; lineNo < fitsBlockSize/HeaderLineSize && !h.End; lineNo++ {
			line := buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				fmt.Fprintf(logWriter, "%d: Warning: Cannot parse '%s', ignoring\n", id, string(line))
				continue
			}
			h.readLine(reParser.SubexpNames(), subValues, id, lineNo, logWriter)
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte, id, lineNo int, logWriter io.Writer) {
	key := ""
	// ignore index 0 which is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] == nil || len(subNames[i]) != 1 {
			continue
		}
		value := string(subValues[i])
		switch c := subNames[i][0]; c {
		case 'E': // end line
			h.End = true
		case 'H':
			h.History = append(h.History, strings.TrimRight(value, " "))
		case 'C':
			h.Comments = append(h.Comments, strings.TrimRight(value, " "))
		case 'k':
			key = value
		case 'b':
			h.Bools[key] = value == "T"
		case 'i':
			if val, err := strconv.ParseInt(value, 10, 64); err == nil {
				h.Ints[key] = int32(val)
			}
		case 'f':
			if val, err := strconv.ParseFloat(strings.Replace(value, "D", "E", 1), 64); err == nil {
				h.Floats[key] = float32(val)
			}
		case 's':
			h.Strings[key] = strings.TrimRight(strings.ReplaceAll(value, "''", "'"), " ")
		case 'd':
			h.Dates[key] = value
		case 'c':
			// value comments are dropped
		default:
			fmt.Fprintf(logWriter, "%d:%d: Warning: Unknown token '%c'\n", id, lineNo, c)
		}
	}
}

// Builds the regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := "\\s+"
	whiteOpt := "\\s*"
	rest := ".*"

	histLine := "HISTORY" + white + "(?P<H>" + rest + ")"
	commLine := "COMMENT" + white + "(?P<C>" + rest + ")"
	endLine := "(?P<E>END)" + whiteOpt

	key := "(?P<k>[A-Z0-9_-]+)"
	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := "(?P<f>[+-]?[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?)"
	stri := "'(?P<s>(?:[^']|'')*)'"
	date := "(?P<d>[0-9]{1,4}-?[012][0-9]-?[0123][0-9]T[012][0-9]:?[0-5][0-9]:?[0-5][0-9].?[0-9]*)"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + "|" + date + ")"
	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + "=" + whiteOpt + val + whiteOpt + commOpt

	lineRe := "^(?:" + white + "|" + histLine + "|" + commLine + "|" + keyLine + "|" + endLine + ")$"
	return regexp.MustCompile(lineRe)
}
