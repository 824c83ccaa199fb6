package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildHistoryPath places an archive batch under a date/hour partition of
// the service that wrote it.
func BuildHistoryPath(service string, flushedAt time.Time, batchID string) (string, error) {
	if err := validatePathComponent(service, "service name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(batchID, "batch id"); err != nil {
		return "", err
	}

	ts := flushedAt.UTC()
	return path.Join(
		"history",
		"service="+service,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("hour=%02d", ts.Hour()),
		fmt.Sprintf("asks-%s.parquet", batchID),
	), nil
}

// HistoryDayPrefix is the key prefix of every batch a service archived on
// the UTC day of day.
func HistoryDayPrefix(service string, day time.Time) (string, error) {
	if err := validatePathComponent(service, "service name"); err != nil {
		return "", err
	}
	ts := day.UTC()
	return path.Join(
		"history",
		"service="+service,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
	) + "/", nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
