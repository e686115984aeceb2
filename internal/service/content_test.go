package service

import (
	"reflect"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	testCases := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"dedupes case-insensitively", []string{"Launch", "launch", "LAUNCH"}, []string{"launch"}},
		{"drops empties", []string{" ", "", "seo"}, []string{"seo"}},
		{"trims whitespace", []string{"  email  ", "ads"}, []string{"email", "ads"}},
		{"preserves order of first occurrence", []string{"b", "a", "b"}, []string{"b", "a"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeTags(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("normalizeTags(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
