package cmd

import "testing"

func TestHumanSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{2684354560, "2.5 GB"},
	}

	for _, tt := range tests {
		got := humanSize(tt.bytes)
		if got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestInsightOptout(t *testing.T) {
	old := insight
	defer func() { insight = old }()

	insight = ""
	if got, err := insightOptout(); err != nil || got != nil {
		t.Errorf("unset: got %v, %v", got, err)
	}

	insight = "true"
	got, err := insightOptout()
	if err != nil || got == nil || *got {
		t.Errorf("true: optout = %v, %v; want false", got, err)
	}

	insight = "false"
	got, err = insightOptout()
	if err != nil || got == nil || !*got {
		t.Errorf("false: optout = %v, %v; want true", got, err)
	}

	insight = "maybe"
	if _, err := insightOptout(); err == nil {
		t.Error("expected error for invalid --insight value")
	}
}

func TestShortRef(t *testing.T) {
	if got := shortRef("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortRef = %q", got)
	}
	if got := shortRef("abc"); got != "abc" {
		t.Errorf("shortRef = %q", got)
	}
}
