package upgrade

import "testing"

func TestSplitVersion(t *testing.T) {
	tests := []struct {
		in   string
		want [3]int
	}{
		{"5.17.0-rc.1", [3]int{5, 17, 0}},
		{"5.17.0", [3]int{5, 17, 0}},
		{"5.17", [3]int{5, 17, 0}},
		{"5", [3]int{5, 0, 0}},
		{"0.0.0", [3]int{0, 0, 0}},
	}
	for _, tt := range tests {
		if got := splitVersion(tt.in); got != tt.want {
			t.Errorf("splitVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	if !versionLess("5.17.0", "5.18.0") {
		t.Errorf("expected 5.17.0 < 5.18.0")
	}
	if !versionEqual("5.17.0-rc.1", "5.17.0-rc.2") {
		t.Errorf("pre-release suffixes should not affect equality")
	}
	if !versionEqual("5.17", "5.17.0") {
		t.Errorf("missing trailing components should default to 0")
	}
	if versionLess("5.18.0", "5.17.0") {
		t.Errorf("5.18.0 should not be less than 5.17.0")
	}
}
