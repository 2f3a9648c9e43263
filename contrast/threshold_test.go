package contrast

import "testing"

func TestRequiredRatioBySizeAndWeight(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pt   float64
		bold bool
		want float64
	}{
		{13.9, false, 4.5},
		{13.9, true, 4.5},
		{14, false, 4.5},
		{14, true, 3.0},
		{17.9, false, 4.5},
		{17.9, true, 3.0},
		{18, false, 3.0},
		{18, true, 3.0},
	}
	for _, tc := range cases {
		if got := RequiredRatio(IsLargeText(tc.pt, tc.bold)); got != tc.want {
			t.Fatalf("RequiredRatio(IsLargeText(%v, %v)) = %v, expected %v", tc.pt, tc.bold, got, tc.want)
		}
	}
}

func TestIsBold(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"bold":   true,
		"700":    true,
		"900":    true,
		"699":    false,
		"400":    false,
		"normal": false,
		"":       false,
		"bolder": true,
	}
	for in, want := range cases {
		if got := IsBold(in); got != want {
			t.Fatalf("IsBold(%q) = %v, expected %v", in, got, want)
		}
	}
}

func TestFontSizePt(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"24px", 18, true},
		{"16px", 12, true},
		{"18pt", 18, true},
		{"12", 9, true},
		{"", 0, false},
		{"large", 0, false},
	}
	for _, tc := range cases {
		got, ok := FontSizePt(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("FontSizePt(%q) = (%v,%v), expected (%v,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
