package storage

import (
	"testing"
	"time"
)

func TestBuildHistoryPath(t *testing.T) {
	ts := time.Date(2026, time.October, 17, 4, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildHistoryPath("askdb-api", ts, "0192a4c3-7f7e-7b1a-9c11-3d2f1e0a9b8c")
	if err != nil {
		t.Fatalf("BuildHistoryPath() error = %v", err)
	}
	want := "history/service=askdb-api/date=2026-10-17/hour=09/asks-0192a4c3-7f7e-7b1a-9c11-3d2f1e0a9b8c.parquet"
	if key != want {
		t.Fatalf("BuildHistoryPath() = %q, want %q", key, want)
	}
}

func TestBuildHistoryPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildHistoryPath("../oops", time.Now(), "b1"); err == nil {
		t.Fatal("expected invalid service error")
	}
	if _, err := BuildHistoryPath("askdb-api", time.Now(), ""); err == nil {
		t.Fatal("expected invalid batch id error")
	}
}

func TestHistoryDayPrefix(t *testing.T) {
	day := time.Date(2026, time.October, 16, 22, 0, 0, 0, time.FixedZone("x", -5*3600))
	prefix, err := HistoryDayPrefix("askdb-api", day)
	if err != nil {
		t.Fatalf("HistoryDayPrefix() error = %v", err)
	}
	if prefix != "history/service=askdb-api/date=2026-10-17/" {
		t.Fatalf("HistoryDayPrefix() = %q", prefix)
	}
	if _, err := HistoryDayPrefix("", day); err == nil {
		t.Fatal("expected invalid service error")
	}
}
