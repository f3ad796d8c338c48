package sheets

import (
	"context"
	"errors"
	"math"
	"testing"

	"powertrust/internal/core"
	"powertrust/internal/dataset"
)

type fakeGetter struct {
	values [][]interface{}
	err    error
	gotRng string
}

func (f *fakeGetter) get(_ context.Context, _, rng string) ([][]interface{}, error) {
	f.gotRng = rng
	return f.values, f.err
}

func header() []interface{} {
	// Column order differs from the CSV export on purpose.
	return []interface{}{"Value (KWh)", "SiteId", "Country", "DevName", "SMRStartDt", "SMREndDt", "Capacity (KW)", "IsCertified"}
}

func TestLoadReadsRowsByHeader(t *testing.T) {
	g := &fakeGetter{values: [][]interface{}{
		header(),
		{"1,250.5", "s1", "Kenya", "Jua", "2022-05-01", "2022-05-31", 3.5, "TRUE"},
		{},
		{120.0, "s2", "India", "Surya", "01/15/2021", "01/31/2021", "", "FALSE"},
	}}
	src := newSource(g, "sheet-id", "")

	recs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if g.gotRng != DefaultRange {
		t.Fatalf("expected default range, got %q", g.gotRng)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ValueKWh != 1250.5 || recs[0].Country != "Kenya" || recs[0].Month != "May" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Year != 2021 || recs[1].Month != "January" || !math.IsNaN(recs[1].CapacityKW) {
		t.Fatalf("unexpected second record: %+v", recs[1])
	}
	if src.Name() != "sheets:sheet-id/"+DefaultRange {
		t.Fatalf("unexpected name %q", src.Name())
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name   string
		values [][]interface{}
		err    error
		want   error
	}{
		{name: "empty sheet", values: nil, want: dataset.ErrMissingColumn},
		{name: "missing header", values: [][]interface{}{{"SiteId", "Country"}}, want: dataset.ErrMissingColumn},
		{
			name:   "bad date",
			values: [][]interface{}{header(), {1.0, "s1", "US", "Acme", "someday", "2022-05-31", 1.0, "TRUE"}},
			want:   dataset.ErrInvalidDate,
		},
		{
			name:   "bad number",
			values: [][]interface{}{header(), {"abc", "s1", "US", "Acme", "2022-05-01", "2022-05-31", 1.0, "TRUE"}},
			want:   core.ErrInvalidNumber,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newSource(&fakeGetter{values: tc.values}, "id", "A:H").Load(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	boom := errors.New("quota")
	_, err := newSource(&fakeGetter{err: boom}, "id", "A:H").Load(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected api error to be wrapped, got %v", err)
	}
}

func TestLoadMatchesCSVPolicy(t *testing.T) {
	h := header()
	h[1] = "\ufeffSiteId"
	g := &fakeGetter{values: [][]interface{}{
		h,
		{"NA", " s1 ", "US ", "Acme", "2022-05-01", "2022-05-31", "n/a", "TRUE"},
	}}
	recs, err := newSource(g, "id", "").Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := recs[0]
	if !math.IsNaN(r.ValueKWh) || !math.IsNaN(r.CapacityKW) {
		t.Fatalf("markers should read as NaN: %+v", r)
	}
	if r.SiteID != "s1" || r.Country != "US" {
		t.Fatalf("text not trimmed: %+v", r)
	}

	recs, err = newSource(&fakeGetter{values: [][]interface{}{header()}}, "id", "").Load(context.Background())
	if err != nil || len(recs) != 0 {
		t.Fatalf("header-only sheet: %d records, %v", len(recs), err)
	}
}

func TestNewRequiresIDAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Options{SpreadsheetID: "x"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
