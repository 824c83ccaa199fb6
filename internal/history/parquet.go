package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

type parquetRecord struct {
	ID             string `parquet:"id"`
	AskedAtUnixMs  int64  `parquet:"asked_at_unix_ms"`
	TraceID        string `parquet:"trace_id"`
	Question       string `parquet:"question"`
	SQL            string `parquet:"sql,optional"`
	Explanation    string `parquet:"explanation,optional"`
	RowCount       int64  `parquet:"row_count"`
	DurationMillis int64  `parquet:"duration_ms"`
	Stage          string `parquet:"stage"`
	ErrorKind      string `parquet:"error_kind,optional"`
	Error          string `parquet:"error,optional"`
}

// EncodeParquet writes a batch of records as one parquet file.
func EncodeParquet(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("records are required")
	}

	rows := make([]parquetRecord, len(records))
	for i, rec := range records {
		rows[i] = parquetRecord{
			ID:             rec.ID,
			AskedAtUnixMs:  rec.AskedAt.UnixMilli(),
			TraceID:        rec.TraceID,
			Question:       rec.Question,
			SQL:            rec.SQL,
			Explanation:    rec.Explanation,
			RowCount:       int64(rec.RowCount),
			DurationMillis: rec.Duration.Milliseconds(),
			Stage:          rec.Stage,
			ErrorKind:      rec.ErrorKind,
			Error:          rec.Error,
		}
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[parquetRecord](&buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads back a batch written by EncodeParquet.
func DecodeParquet(data []byte) ([]Record, error) {
	reader := parquet.NewGenericReader[parquetRecord](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]parquetRecord, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	records := make([]Record, n)
	for i, row := range rows[:n] {
		records[i] = Record{
			ID:          row.ID,
			AskedAt:     time.UnixMilli(row.AskedAtUnixMs).UTC(),
			TraceID:     row.TraceID,
			Question:    row.Question,
			SQL:         row.SQL,
			Explanation: row.Explanation,
			RowCount:    int(row.RowCount),
			Duration:    time.Duration(row.DurationMillis) * time.Millisecond,
			Stage:       row.Stage,
			ErrorKind:   row.ErrorKind,
			Error:       row.Error,
		}
	}
	return records, nil
}
