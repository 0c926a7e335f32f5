package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

type commandKind int

const (
	commandText commandKind = iota
	commandMicrophone
	commandSpeaker
	commandImage
	commandConnect
	commandDisconnect
	commandQuit
	commandHelp
)

type command struct {
	kind commandKind
	arg  string
}

var errEmptyInput = errors.New("nothing to send")

const helpText = "/mic, /speaker, /image <path>, /connect, /disconnect, /quit; anything else is sent as text"

// parseCommand reads one line of prompt input. Lines starting with a single
// slash are commands; a doubled slash escapes a literal one.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errEmptyInput
	}
	if strings.HasPrefix(line, "//") {
		return command{kind: commandText, arg: line[1:]}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: commandText, arg: line}, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "mic", "microphone":
		return command{kind: commandMicrophone}, nil
	case "speaker", "spk":
		return command{kind: commandSpeaker}, nil
	case "image", "img":
		if arg == "" {
			return command{}, fmt.Errorf("/image needs a file path")
		}
		return command{kind: commandImage, arg: arg}, nil
	case "connect":
		return command{kind: commandConnect}, nil
	case "disconnect":
		return command{kind: commandDisconnect}, nil
	case "quit", "exit", "q":
		return command{kind: commandQuit}, nil
	case "help", "?":
		return command{kind: commandHelp}, nil
	}
	return command{}, fmt.Errorf("unknown command /%s, try /help", name)
}

// readImage loads path and sniffs its MIME type. Only image types are
// accepted.
func readImage(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("image %s is empty", path)
	}
	mimeType, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if !strings.HasPrefix(mimeType, "image/") {
		return "", nil, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return mimeType, data, nil
}
