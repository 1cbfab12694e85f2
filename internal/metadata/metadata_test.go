package metadata

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12345", "12345"},
		{"12345.0", "12345"},
		{" 12345.0 ", "12345"},
		{"12345.00", "12345.00"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeID(tc.in); got != tc.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReadIndexesRows(t *testing.T) {
	table := `study_id,cart_id,lowpassfilter,highpassfilter,ecg_time
1001.0,CART-1,100,0.5,2021-03-04 10:20:30
1002,CART-2,,,
,CART-3,,,
`
	index, err := Read(strings.NewReader(table))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if index.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (blank id skipped)", index.Len())
	}

	row, ok := index.Lookup("1001")
	if !ok {
		t.Fatal("want row for normalized id 1001")
	}
	if row.CartID != "CART-1" {
		t.Fatalf("cart id %q", row.CartID)
	}
	if row.FilterLow == nil || *row.FilterLow != 100 {
		t.Fatalf("filter low %v", row.FilterLow)
	}
	if row.FilterHigh == nil || *row.FilterHigh != 0.5 {
		t.Fatalf("filter high %v", row.FilterHigh)
	}
	want := time.Date(2021, time.March, 4, 10, 20, 30, 0, time.Local)
	if row.RecordedAt == nil || !row.RecordedAt.Equal(want) {
		t.Fatalf("recorded at %v, want %v", row.RecordedAt, want)
	}

	// The float-suffixed spreadsheet form resolves to the same row.
	if _, ok := index.Lookup("1001.0"); !ok {
		t.Fatal("lookup should normalize the queried id too")
	}

	sparse, ok := index.Lookup("1002")
	if !ok {
		t.Fatal("want row for id 1002")
	}
	if sparse.FilterLow != nil || sparse.FilterHigh != nil || sparse.RecordedAt != nil {
		t.Fatalf("sparse row should leave optional fields nil: %+v", sparse)
	}
}

func TestReadRequiresIDColumn(t *testing.T) {
	_, err := Read(strings.NewReader("cart_id,ecg_time\nCART-1,\n"))
	if err == nil || !strings.Contains(err.Error(), "study_id") {
		t.Fatalf("want missing id column error, got %v", err)
	}
}

func TestReadToleratesUnparseableFields(t *testing.T) {
	table := "study_id,lowpassfilter,ecg_time\n2001,notanumber,notatime\n"
	index, err := Read(strings.NewReader(table))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	row, ok := index.Lookup("2001")
	if !ok {
		t.Fatal("want row for id 2001")
	}
	if row.FilterLow != nil || row.RecordedAt != nil {
		t.Fatalf("unparseable fields should stay nil: %+v", row)
	}
}
