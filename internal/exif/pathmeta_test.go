package exif

import (
	"testing"
	"time"
)

func TestParseDirname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dirname  string
		wantTags []string
		wantDate string
	}{
		{
			"date and words",
			"/photos/2019-08-21 Beach Trip",
			[]string{"beach", "trip"},
			"2019-08-21",
		},
		{
			"compact date",
			"/photos/20190821 Beach",
			[]string{"beach"},
			"2019-08-21",
		},
		{
			"year and month only",
			"/photos/2019-08 Holidays",
			[]string{"holidays"},
			"2019-08-01",
		},
		{
			"words only",
			"/photos/Beach Trip",
			[]string{"beach", "trip"},
			"",
		},
		{
			"camel case splits",
			"/photos/BeachTrip",
			[]string{"beach", "trip"},
			"",
		},
		{
			"stopwords dropped",
			"/photos/Trip to the Beach",
			[]string{"trip", "beach"},
			"",
		},
		{
			"short digit run is not a date",
			"/photos/35mm Scans",
			[]string{"35mm", "scans"},
			"",
		},
		{
			"underscores and dashes split words",
			"/photos/beach_trip-edits",
			[]string{"beach", "trip"},
			"",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tags, date := ParseDirname(tc.dirname)

			if len(tags) != len(tc.wantTags) {
				t.Fatalf("got tags %v, want %v", tags, tc.wantTags)
			}
			for i := range tags {
				if tags[i] != tc.wantTags[i] {
					t.Errorf("tag %d = %q, want %q", i, tags[i], tc.wantTags[i])
				}
			}

			if tc.wantDate == "" {
				if date != nil {
					t.Errorf("got date %v, want none", date)
				}
				return
			}
			want, err := time.Parse("2006-01-02", tc.wantDate)
			if err != nil {
				t.Fatal(err)
			}
			if date == nil || !date.Equal(want) {
				t.Errorf("got date %v, want %s", date, tc.wantDate)
			}
		})
	}
}

func TestParseDirnameRoot(t *testing.T) {
	t.Parallel()

	tags, date := ParseDirname("/")
	if tags != nil || date != nil {
		t.Errorf("root directory should yield nothing, got %v, %v", tags, date)
	}
}
