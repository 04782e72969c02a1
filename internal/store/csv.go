package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

var (
	// ErrSchemaMismatch is returned when a row's values do not match the
	// declared columns of its class.
	ErrSchemaMismatch = errors.New("row does not match schema")

	// ErrMalformedRow is returned when a stored CSV cannot be decoded
	// against the declared columns.
	ErrMalformedRow = errors.New("malformed row")
)

// fixed leading fields of every row: datetime,timestamp.
const leadingFields = 2

// EncodeRow serializes row as a single headerless CSV record laid out as
// datetime,timestamp,<columns...>. Unavailable values become empty fields.
func EncodeRow(columns []string, row *domain.Row) ([]byte, error) {
	if len(row.Values) != len(columns) {
		return nil, fmt.Errorf("%w: %s has %d values, want %d",
			ErrSchemaMismatch, row.Class, len(row.Values), len(columns))
	}

	record := make([]string, 0, len(columns)+leadingFields)
	record = append(record,
		row.Date.Format(domain.DateLayout),
		strconv.FormatInt(row.Date.Unix(), 10),
	)
	for _, col := range columns {
		v, ok := row.Values[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s is missing column %q", ErrSchemaMismatch, row.Class, col)
		}
		if v.IsUnavailable() {
			record = append(record, "")
			continue
		}
		record = append(record, v.String())
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(record); err != nil {
		return nil, fmt.Errorf("encoding %s row: %w", row.Class, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encoding %s row: %w", row.Class, err)
	}
	return buf.Bytes(), nil
}

// DecodeRow parses the last record of a stored snapshot. Empty fields decode
// as unavailable values.
func DecodeRow(class string, columns []string, data []byte) (*domain.Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(columns) + leadingFields

	var record []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedRow, class, err)
		}
		record = rec
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s: no records", ErrMalformedRow, class)
	}

	date, err := time.Parse(domain.DateLayout, record[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s datetime %q", ErrMalformedRow, class, record[0])
	}
	if ts, err := strconv.ParseInt(record[1], 10, 64); err == nil {
		date = time.Unix(ts, 0).UTC()
	}

	values := make(domain.Values, len(columns))
	for i, col := range columns {
		field := record[i+leadingFields]
		if field == "" {
			values[col] = domain.Unavailable()
			continue
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s column %q: %q is not a number", ErrMalformedRow, class, col, field)
		}
		values[col] = domain.Measured(f)
	}

	return &domain.Row{Class: class, Date: date, Values: values}, nil
}

// Record is one line of a daily table, keyed by column name.
type Record map[string]string

// DecodeTable parses a CSV with a header line, as written daily by
// advise-reporter. Every column in required must be present in the header;
// other columns are ignored.
func DecodeTable(name string, required []string, data []byte) ([]Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s header: %w", ErrMalformedRow, name, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s has no %q column", ErrMalformedRow, name, col)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedRow, name, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: %s line %d has %d fields, want %d",
				ErrMalformedRow, name, line, len(rec), len(header))
		}
		out := make(Record, len(required))
		for _, col := range required {
			out[col] = rec[index[col]]
		}
		records = append(records, out)
	}
	return records, nil
}
