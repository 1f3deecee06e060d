package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=1000", MaxLimit, 0},
		{"?limit=-1&offset=-7", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/user"+tt.query, nil), httptest.NewRecorder())
			p := FromContext(c)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("FromContext(%q) = %+v, want limit=%d offset=%d", tt.query, p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 0})
	if !resp.HasMore {
		t.Error("expected HasMore with 5 total and first page of 2")
	}
	resp = NewResponse([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if resp.HasMore {
		t.Error("expected no more results on last page")
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("NextOffset() = %d, want 15", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("PreviousOffset() = %d, want 0", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious for offset 5")
	}
}

func TestParams_LinkHeader(t *testing.T) {
	p := Params{Limit: 10, Offset: 10}
	got := p.LinkHeader("/user", 35)
	want := `</user?limit=10&offset=20>; rel="next", </user?limit=10&offset=0>; rel="prev"`
	if got != want {
		t.Errorf("LinkHeader() = %q, want %q", got, want)
	}

	if got := (Params{Limit: 10}).LinkHeader("/user", 3); got != "" {
		t.Errorf("expected empty header for a single page, got %q", got)
	}
}
