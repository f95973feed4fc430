// Package csvbatch decodes hotspot CSV files into raw batch rows.
package csvbatch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// aliases maps lower-cased header names to canonical column names.
var aliases = map[string]string{
	"lat":           domain.ColumnLat,
	"latitude":      domain.ColumnLat,
	"latitude_deg":  domain.ColumnLat,
	"lon":           domain.ColumnLon,
	"long":          domain.ColumnLon,
	"lng":           domain.ColumnLon,
	"longitude":     domain.ColumnLon,
	"data_hora":     domain.ColumnObservedAt,
	"data_hora_gmt": domain.ColumnObservedAt,
	"datahora":      domain.ColumnObservedAt,
	"observed_at":   domain.ColumnObservedAt,
	"datetime":      domain.ColumnObservedAt,
	"satelite":      domain.ColumnSatellite,
	"satellite":     domain.ColumnSatellite,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode reads a CSV document whose first line is a header. Comma and
// semicolon separators are both accepted. Rows that cannot be decoded are
// returned with RawRow.Err set so the caller can report them by line. A
// header without latitude and longitude columns is ErrInputUnavailable.
// An empty document yields a batch with no rows.
func Decode(r io.Reader, source string) (domain.Batch, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	comma, err := sniffDelimiter(br)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("read %s: %w", source, err)
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	batch := domain.Batch{Source: source}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return batch, nil
	}
	if err != nil {
		return domain.Batch{}, fmt.Errorf("read header of %s: %w", source, err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		columns[i] = name
	}
	batch.Columns = columns

	if !batch.HasColumn(domain.ColumnLat) || !batch.HasColumn(domain.ColumnLon) {
		return domain.Batch{}, fmt.Errorf("%s: header %v has no latitude/longitude columns: %w",
			source, header, domain.ErrInputUnavailable)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			batch.Rows = append(batch.Rows, domain.RawRow{Line: parseErr.StartLine, Err: parseErr.Err})
			continue
		}
		if err != nil {
			return domain.Batch{}, fmt.Errorf("read %s: %w", source, err)
		}

		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}
		if len(record) != len(columns) {
			batch.Rows = append(batch.Rows, domain.RawRow{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, got %d", len(columns), len(record)),
			})
			continue
		}

		fields := make(map[string]string, len(columns))
		for i, c := range columns {
			fields[c] = record[i]
		}
		batch.Rows = append(batch.Rows, domain.RawRow{Line: line, Fields: fields})
	}

	return batch, nil
}

// sniffDelimiter picks ';' when the header line has semicolons but no commas.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	for n := 64; ; n *= 2 {
		b, err := br.Peek(n)
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			b = b[:i]
		} else if err == nil {
			continue
		} else if !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return 0, err
		}
		if bytes.IndexByte(b, ',') < 0 && bytes.IndexByte(b, ';') >= 0 {
			return ';', nil
		}
		return ',', nil
	}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
