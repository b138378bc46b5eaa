package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	in  io.Reader = os.Stdin
	out io.Writer = os.Stdout
)

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptString prompts user for a string input
func PromptString(label string) (string, error) {
	fmt.Fprint(out, label)
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// PromptPassword prompts user for a secret (hidden input)
func PromptPassword(label string) (string, error) {
	if !IsInteractive() {
		return PromptString(label)
	}

	fmt.Fprint(out, label)
	bytepw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out) // New line after hidden input

	return strings.TrimSpace(string(bytepw)), nil
}

// PromptConfirm prompts user for yes/no confirmation
func PromptConfirm(label string) (bool, error) {
	input, err := PromptString(label + " (y/n) ")
	if err != nil {
		return false, err
	}

	response := strings.ToLower(input)
	return response == "y" || response == "yes", nil
}
