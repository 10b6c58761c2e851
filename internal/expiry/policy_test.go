package expiry

import (
	"testing"
	"time"
)

func TestCompute(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		class Class
		want  time.Time
	}{
		{Hour, now.Add(time.Hour)},
		{Day, now.Add(24 * time.Hour)},
		{Week, now.Add(7 * 24 * time.Hour)},
		{Month, now.Add(30 * 24 * time.Hour)},
		{"", now.Add(24 * time.Hour)},
		{"2y", now.Add(24 * time.Hour)},
		{"1H", now.Add(24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			got := Compute(now, tt.class)
			if !got.Equal(tt.want) {
				t.Fatalf("Compute(%q) = %v, want %v", tt.class, got, tt.want)
			}
			if !got.After(now) {
				t.Fatalf("expiry %v not after %v", got, now)
			}
		})
	}
}

func TestComputeNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, 3, 1, 15, 30, 0, 0, loc)

	got := Compute(now, Hour)
	if got.Location() != time.UTC {
		t.Fatalf("location = %v, want UTC", got.Location())
	}
	if !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("got %v, want %v", got, now.Add(time.Hour))
	}
}

func TestNormalize(t *testing.T) {
	for _, c := range Classes() {
		if got := Normalize(string(c)); got != c {
			t.Errorf("Normalize(%q) = %q", c, got)
		}
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if got := Normalize("forever"); got != Default {
		t.Errorf("Normalize(forever) = %q, want %q", got, Default)
	}
	if Class("forever").Valid() {
		t.Error("unknown class reported valid")
	}
}
