package cmd

import "testing"

func TestWantsHelp(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want bool
	}{
		{"no args", nil, false},
		{"bare h", []string{"h"}, true},
		{"bare help", []string{"help"}, true},
		{"short flag", []string{"-h"}, true},
		{"single dash word", []string{"-help"}, true},
		{"double dash", []string{"--help"}, true},
		{"late position", []string{"-e", "--display", ":0", "--help"}, true},
		{"forwarded flags only", []string{"-e", "--display", ":0"}, false},
		{"prefix is not a token", []string{"helper"}, false},
		{"suffix is not a token", []string{"shelp"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := wantsHelp(tc.args); got != tc.want {
				t.Errorf("wantsHelp(%v) = %v, want %v", tc.args, got, tc.want)
			}
		})
	}
}
