// Package history loads and stores bar data as CSV files, one file per
// symbol, optionally gzip or xz compressed. Rows are
//
//	time,open,high,low,close[,volume]
//
// with RFC3339 or date-only timestamps. A header row is allowed.
package history

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/alpaquero/alpaquero/market"
)

// ErrDataUnavailable marks a symbol with no usable bars: no file on
// disk, or nothing left after range filtering.
var ErrDataUnavailable = errors.New("data unavailable")

// extensions tried in order when resolving a symbol's file.
var extensions = []string{".csv", ".csv.gz", ".csv.xz"}

type CSVStore struct {
	Dir      string
	Compress string // "gz", "xz" or "" for plain output on save
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// LoadSeries reads every bar for symbol inside [from, to). Zero times
// leave that end unbounded. Bars must be strictly ascending; a
// disordered file aborts the load with market.ErrOutOfOrder.
func (s *CSVStore) LoadSeries(symbol string, from, to time.Time) (*market.Series, error) {
	path, err := s.resolve(symbol)
	if err != nil {
		return nil, err
	}

	rc, err := openBars(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1

	series := market.NewSeries(symbol)
	sawFirst := false
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if isHeader(row[0]) {
				continue
			}
		}

		b, ok, err := parseBarRow(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			continue
		}
		if !inRange(b.Time, from, to) {
			continue
		}
		if err := series.Append(b); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if series.Len() == 0 {
		return nil, fmt.Errorf("%s: no bars in %s: %w", symbol, filepath.Base(path), ErrDataUnavailable)
	}
	return series, nil
}

// SaveSeries writes the series to Dir, compressed per Compress. The
// write goes through a temp file so readers never see a partial file.
func (s *CSVStore) SaveSeries(series *market.Series) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}

	name := series.Symbol() + ".csv"
	switch s.Compress {
	case "gz":
		name += ".gz"
	case "xz":
		name += ".xz"
	case "":
	default:
		return fmt.Errorf("unknown compression %q", s.Compress)
	}
	dst := filepath.Join(s.Dir, name)
	tmp := dst + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := s.writeBars(f, series); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (s *CSVStore) writeBars(f *os.File, series *market.Series) error {
	var out io.Writer = f
	var finish func() error

	switch s.Compress {
	case "gz":
		gw := gzip.NewWriter(f)
		out, finish = gw, gw.Close
	case "xz":
		xw, err := xz.NewWriter(f)
		if err != nil {
			return err
		}
		out, finish = xw, xw.Close
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range series.Bars() {
		if err := w.Write(formatBarRow(b)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if finish != nil {
		return finish()
	}
	return nil
}

// Symbols lists the symbols with a data file under Dir, sorted.
func (s *CSVStore) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		name = strings.TrimSuffix(name, ".gz")
		name = strings.TrimSuffix(name, ".xz")
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		seen[strings.TrimSuffix(name, ".csv")] = true
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (s *CSVStore) resolve(symbol string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, symbol+ext)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: no data file under %s: %w", symbol, s.Dir, ErrDataUnavailable)
}

// openBars opens path and stacks the matching decompressor on top.
func openBars(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &stacked{r: gr, closers: []io.Closer{gr, f}}, nil
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &stacked{r: xr, closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

type stacked struct {
	r       io.Reader
	closers []io.Closer
}

func (s *stacked) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
