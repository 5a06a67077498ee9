package dbtypes

import "testing"

func TestStringListScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want []string
	}{
		{name: "nil", src: nil, want: []string{}},
		{name: "bytes", src: []byte(`["a.png","b.png"]`), want: []string{"a.png", "b.png"}},
		{name: "string", src: `["only.png"]`, want: []string{"only.png"}},
		{name: "json null", src: "null", want: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var l StringList
			if err := l.Scan(tc.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(l) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, l)
			}
			for i := range tc.want {
				if l[i] != tc.want[i] {
					t.Fatalf("index %d: expected %q got %q", i, tc.want[i], l[i])
				}
			}
		})
	}
}

func TestStringListScanRejectsGarbage(t *testing.T) {
	var l StringList
	if err := l.Scan(42); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if err := l.Scan("{a,b}"); err == nil {
		t.Fatal("expected parse error for non-json input")
	}
}

func TestStringListValueNil(t *testing.T) {
	var l StringList
	v, err := l.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != "[]" {
		t.Fatalf("expected empty json array, got %v", v)
	}
}
