package indexer

import "testing"

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\r\n\r\nb", "a\n\nb"},
		{"\uFEFFtitle", "title"},
		{"para one\n  \t\npara two", "para one\n\npara two"},
		{"  keep  inner  spaces \n", "keep  inner  spaces"},
		{"old\rmac", "old\nmac"},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
