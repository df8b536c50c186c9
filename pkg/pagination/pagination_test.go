package pagination

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "/")
	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Size != DefaultSize {
		t.Errorf("expected default size %d, got %d", DefaultSize, p.Size)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "/?page=3&size=10")
	if p.Page != 3 || p.Size != 10 {
		t.Errorf("expected page 3 size 10, got %+v", p)
	}
	if p.Limit() != 10 || p.Offset() != 20 {
		t.Errorf("expected limit 10 offset 20, got %d %d", p.Limit(), p.Offset())
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := paramsFor(t, "/?page=-2&size=1000")
	if p.Page != 1 {
		t.Errorf("expected page clamped to 1, got %d", p.Page)
	}
	if p.Size != MaxSize {
		t.Errorf("expected size clamped to %d, got %d", MaxSize, p.Size)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	p := paramsFor(t, "/?page=abc&size=xyz")
	if p.Page != 1 || p.Size != DefaultSize {
		t.Errorf("expected defaults for garbage input, got %+v", p)
	}
}

func TestNewPage_Pages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{100, 10, 10},
	}
	for _, tt := range tests {
		got := NewPage([]int{}, tt.total, Params{Page: 1, Size: tt.size})
		if got.Pages != tt.want {
			t.Errorf("total=%d size=%d: expected %d pages, got %d", tt.total, tt.size, tt.want, got.Pages)
		}
	}
}

func TestNewPage_NilItemsSerializeAsEmpty(t *testing.T) {
	b, err := json.Marshal(NewPage[string](nil, 0, Params{Page: 1, Size: 50}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"items":[],"total":0,"page":1,"size":50,"pages":0}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestFromContext_HugePageKeepsOffsetInRange(t *testing.T) {
	p := paramsFor(t, "/?page=9223372036854775807&size=50")
	if p.Page != MaxPage {
		t.Errorf("expected page clamped to %d, got %d", MaxPage, p.Page)
	}
	if off := p.Offset(); off < 0 || off > math.MaxInt32 {
		t.Errorf("offset %d outside the int32 range", off)
	}

	p = paramsFor(t, "/?page=9223372036854775807&size=100")
	if off := p.Offset(); off < 0 || off > math.MaxInt32 {
		t.Errorf("offset %d outside the int32 range at max size", off)
	}
}
