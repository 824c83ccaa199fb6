package query

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestRowMarshalKeepsColumnOrder(t *testing.T) {
	row := NewRow([]string{"price", "name", "id"}, []any{9.5, "Widget", int64(3)})

	encoded, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(encoded), `{"price":9.5,"name":"Widget","id":3}`; got != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
}

func TestRowDuplicateColumnsCollapse(t *testing.T) {
	row := NewRow([]string{"id", "name", "id"}, []any{int64(1), "a", int64(2)})

	if got := row.Columns(); !reflect.DeepEqual(got, []string{"id", "name"}) {
		t.Fatalf("Columns() = %v", got)
	}
	value, ok := row.Get("id")
	if !ok || value != int64(2) {
		t.Fatalf("Get(id) = %v, %v", value, ok)
	}
	if row.Len() != 2 {
		t.Fatalf("Len() = %d", row.Len())
	}
}

func TestRowUnmarshalPreservesOrderAndNumbers(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`{"z":1,"a":"x","m":null,"n":12.50}`), &row); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := row.Columns(); !reflect.DeepEqual(got, []string{"z", "a", "m", "n"}) {
		t.Fatalf("Columns() = %v", got)
	}
	value, _ := row.Get("n")
	if value != json.Number("12.50") {
		t.Fatalf("Get(n) = %#v", value)
	}

	reencoded, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(reencoded) != `{"z":1,"a":"x","m":null,"n":12.50}` {
		t.Fatalf("Marshal() = %s", reencoded)
	}
}

func TestRowUnmarshalRejectsNonObject(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`[1,2]`), &row); err == nil {
		t.Fatal("expected error for array input")
	}
}

func TestEmptyRowMarshalsAsObject(t *testing.T) {
	encoded, err := json.Marshal(Row{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(encoded) != `{}` {
		t.Fatalf("Marshal() = %s", encoded)
	}
}

func TestExecutionErrorKeepsDriverMessage(t *testing.T) {
	driverErr := errors.New(`relation "missing" does not exist`)
	err := error(&ExecutionError{Err: driverErr})

	if err.Error() != `relation "missing" does not exist` {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, driverErr) {
		t.Fatal("expected errors.Is to reach the driver error")
	}
}
