// Package ingest finds export files on disk, decodes them and splits them into
// raw rows for the normalizers.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
	"bankmerge/internal/normalize"
)

// Format describes how a source's files are encoded and delimited.
type Format struct {
	Encoding encoding.Encoding
	Tabbed   bool // tab separated, no quoting
}

// FormatOf returns the export format of a source.
func FormatOf(src core.SourceID) Format {
	switch src {
	case core.SourceShinsei:
		return Format{Encoding: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), Tabbed: true}
	default:
		return Format{Encoding: japanese.ShiftJIS}
	}
}

// Reader loads <root>/<source>/*.csv for every source.
type Reader struct {
	root   string
	logger *log.Logger
}

func NewReader(root string, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Reader{root: root, logger: logger.WithComponent(log.ComponentIngest)}
}

// Discover lists the export files of each source, sorted by name. Sources
// without a directory are omitted.
func (r *Reader) Discover() (map[core.SourceID][]string, error) {
	out := make(map[core.SourceID][]string)
	for _, src := range core.AllSources() {
		dir := filepath.Join(r.root, src.String())
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			r.logger.Info("No input directory for source", log.FieldSource, src.String(), "dir", dir)
			continue
		}
		paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		sort.Strings(paths)
		out[src] = paths
	}
	return out, nil
}

// ReadAll discovers and tokenizes every source. A read failure of one source
// is returned in the errs map and does not stop the others.
func (r *Reader) ReadAll() (map[core.SourceID][]normalize.RawRow, map[core.SourceID]error, error) {
	files, err := r.Discover()
	if err != nil {
		return nil, nil, err
	}
	rows := make(map[core.SourceID][]normalize.RawRow, len(files))
	errs := make(map[core.SourceID]error)
	for _, src := range core.AllSources() {
		paths, ok := files[src]
		if !ok {
			continue
		}
		srcRows, err := r.ReadSource(src, paths)
		if err != nil {
			errs[src] = err
			continue
		}
		rows[src] = srcRows
	}
	return rows, errs, nil
}

// ReadSource tokenizes the given files of one source, in order.
func (r *Reader) ReadSource(src core.SourceID, paths []string) ([]normalize.RawRow, error) {
	var out []normalize.RawRow
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		rows, err := Tokenize(src, filepath.Base(p), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		r.logger.Info("Read export file",
			log.FieldOperation, log.OpRead,
			log.FieldSource, src.String(),
			log.FieldFile, p,
			log.FieldRows, len(rows))
		out = append(out, rows...)
	}
	return out, nil
}

// Tokenize decodes one export file and returns its data rows. The header row
// and every row whose field count does not match the source layout are dropped.
func Tokenize(src core.SourceID, name string, in io.Reader) ([]normalize.RawRow, error) {
	arity := normalize.Arity(src)
	if arity == 0 {
		return nil, fmt.Errorf("unknown source %s", src)
	}
	format := FormatOf(src)
	decoded := transform.NewReader(in, format.Encoding.NewDecoder())

	var lines []normalize.RawRow
	var err error
	if format.Tabbed {
		lines, err = splitTabbed(name, decoded)
	} else {
		lines, err = splitCSV(name, decoded)
	}
	if err != nil {
		return nil, err
	}

	var out []normalize.RawRow
	headerSeen := false
	for _, l := range lines {
		if len(l.Fields) != arity {
			continue
		}
		if !headerSeen {
			headerSeen = true
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func splitCSV(name string, in io.Reader) ([]normalize.RawRow, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var out []normalize.RawRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := r.FieldPos(0)
		out = append(out, normalize.RawRow{File: name, Line: line, Fields: trimAll(rec)})
	}
	return out, nil
}

func splitTabbed(name string, in io.Reader) ([]normalize.RawRow, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []normalize.RawRow
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		out = append(out, normalize.RawRow{File: name, Line: line, Fields: trimAll(strings.Split(text, "\t"))})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

func trimAll(fields []string) []string {
	for i := range fields {
		fields[i] = strings.TrimSpace(strings.TrimPrefix(fields[i], "\ufeff"))
	}
	return fields
}
