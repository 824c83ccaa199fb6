package history

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/storage"
)

// ReadArchive returns every record a service archived on the UTC day of day,
// oldest first.
func ReadArchive(ctx context.Context, store storage.ObjectStore, service string, day time.Time) ([]Record, error) {
	prefix, err := storage.HistoryDayPrefix(service, day)
	if err != nil {
		return nil, err
	}
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list history batches: %w", err)
	}

	var records []Record
	for _, object := range objects {
		if !strings.HasSuffix(object.Key, ".parquet") {
			continue
		}
		batch, err := readBatch(ctx, store, object.Key)
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].AskedAt.Before(records[j].AskedAt) })
	return records, nil
}

func readBatch(ctx context.Context, store storage.ObjectStore, key string) ([]Record, error) {
	body, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get history batch %s: %w", key, err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read history batch %s: %w", key, err)
	}
	records, err := DecodeParquet(data)
	if err != nil {
		return nil, fmt.Errorf("decode history batch %s: %w", key, err)
	}
	return records, nil
}
