package cmd

import (
	"reflect"
	"strings"
	"testing"
)

func TestCommandTree(t *testing.T) {
	expect := []string{
		"auth set", "auth whoami", "auth logout",
		"presence roster", "presence set",
		"room watch", "room type",
		"follow status", "follow toggle",
		"relay serve",
		"version",
	}

	for _, path := range expect {
		t.Run(path, func(t *testing.T) {
			args := strings.Fields(path)
			found, rest, err := rootCmd.Find(args)
			if err != nil {
				t.Fatalf("Find(%v) failed: %v", args, err)
			}
			if len(rest) != 0 || found.Name() != args[len(args)-1] {
				t.Errorf("Expected %q, found %q (rest %v)", path, found.CommandPath(), rest)
			}
		})
	}
}

func TestOutputFlagValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	rootCmd.SetArgs([]string{"--config", t.TempDir() + "/config.toml", "--output", "yaml", "version"})
	defer rootCmd.SetArgs(nil)
	defer func() { outputFmt = "" }()

	if err := rootCmd.Execute(); err == nil {
		t.Error("Expected invalid output format to be rejected")
	}
}

func TestSplitRooms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"lobby,studio-a", []string{"lobby", "studio-a"}},
		{" lobby , ,studio-b ", []string{"lobby", "studio-b"}},
		{"", nil},
	}

	for _, tt := range tests {
		if got := splitRooms(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitRooms(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
