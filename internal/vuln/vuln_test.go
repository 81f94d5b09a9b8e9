package vuln

import "testing"

func TestSeverityAtLeast(t *testing.T) {
	cases := []struct {
		severity Severity
		min      Severity
		want     bool
	}{
		{Critical, High, true},
		{High, High, true},
		{Medium, High, false},
		{Low, Low, true},
		{Low, Critical, false},
	}
	for _, c := range cases {
		if got := c.severity.AtLeast(c.min); got != c.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", c.severity, c.min, got, c.want)
		}
	}
}

func TestNormalizeSeverity(t *testing.T) {
	cases := map[string]Severity{
		"CRITICAL": Critical,
		"high":     High,
		"MODERATE": Medium,
		"unknown":  Low,
		"":         Low,
	}
	for input, want := range cases {
		if got := normalizeSeverity(input); got != want {
			t.Errorf("normalizeSeverity(%q) = %s, want %s", input, got, want)
		}
	}
}
