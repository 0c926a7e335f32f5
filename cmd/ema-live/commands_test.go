package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"hello there", command{kind: commandText, arg: "hello there"}},
		{"  padded  ", command{kind: commandText, arg: "padded"}},
		{"//mic is a word", command{kind: commandText, arg: "/mic is a word"}},
		{"/mic", command{kind: commandMicrophone}},
		{"/Speaker", command{kind: commandSpeaker}},
		{"/image  cat.png ", command{kind: commandImage, arg: "cat.png"}},
		{"/connect", command{kind: commandConnect}},
		{"/disconnect", command{kind: commandDisconnect}},
		{"/quit", command{kind: commandQuit}},
		{"/help", command{kind: commandHelp}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseCommandRejectsBadInput(t *testing.T) {
	for _, line := range []string{"", "   ", "/image", "/dance"} {
		if _, err := parseCommand(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestReadImageSniffsType(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "pixel.png")
	header := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := os.WriteFile(png, header, 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	mimeType, data, err := readImage(png)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mimeType != "image/png" {
		t.Fatalf("expected image/png, got %q", mimeType)
	}
	if len(data) != len(header) {
		t.Fatalf("expected %d bytes, got %d", len(header), len(data))
	}

	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("just some notes"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, _, err := readImage(text); err == nil || !strings.Contains(err.Error(), "not an image") {
		t.Fatalf("expected not an image error, got %v", err)
	}
}
