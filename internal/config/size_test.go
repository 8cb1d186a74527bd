package config

import "testing"

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 4096},
		{"1024", 1024},
		{"1kb", 1000},
		{"1kib", 1024},
		{"1MiB", 1 << 20},
		{"2mb", 2_000_000},
		{"1.5MiB", 1536 * 1024},
		{"1GiB", 1 << 30},
		{" 512 kib ", 512 * 1024},
	}
	for _, tc := range cases {
		got, err := ParseSize(tc.in, 4096)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"lots", "12zb", "mib"} {
		if _, err := ParseSize(in, 0); err == nil {
			t.Fatalf("ParseSize(%q) should fail", in)
		}
	}
}
