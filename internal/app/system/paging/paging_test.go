package paging

import (
	"net/http/httptest"
	"testing"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"?start=51", 51},
		{"?start=0", 1},
		{"?start=-3", 1},
		{"?start=abc", 1},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/audit"+tt.query, nil)
		if got := ParseStart(r); got != tt.want {
			t.Errorf("ParseStart(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(1); got != 0 {
		t.Errorf("Offset(1) = %d, want 0", got)
	}
	if got := Offset(51); got != 50 {
		t.Errorf("Offset(51) = %d, want 50", got)
	}
	if got := Offset(0); got != 0 {
		t.Errorf("Offset(0) = %d, want 0", got)
	}
}

func TestComputeRange(t *testing.T) {
	tests := []struct {
		name  string
		start int
		shown int
		total int64
		want  Range
	}{
		{
			name:  "no results",
			start: 1,
			shown: 0,
			total: 0,
			want:  Range{Start: 0, End: 0, PrevStart: 1, NextStart: 1},
		},
		{
			name:  "first page full",
			start: 1,
			shown: PageSize,
			total: PageSize * 2,
			want:  Range{Start: 1, End: PageSize, PrevStart: 1, NextStart: PageSize + 1, HasNext: true},
		},
		{
			name:  "first page partial",
			start: 1,
			shown: 10,
			total: 10,
			want:  Range{Start: 1, End: 10, PrevStart: 1, NextStart: 11},
		},
		{
			name:  "second page",
			start: PageSize + 1,
			shown: PageSize,
			total: PageSize * 2,
			want:  Range{Start: PageSize + 1, End: PageSize * 2, PrevStart: 1, NextStart: PageSize*2 + 1},
		},
		{
			name:  "middle page",
			start: 101,
			shown: 50,
			total: 400,
			want:  Range{Start: 101, End: 150, PrevStart: 51, NextStart: 151, HasNext: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRange(tt.start, tt.shown, tt.total)
			if got != tt.want {
				t.Errorf("ComputeRange(%d, %d, %d) = %+v, want %+v", tt.start, tt.shown, tt.total, got, tt.want)
			}
		})
	}
}
