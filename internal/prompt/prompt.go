// Package prompt provides interactive console I/O: visible and hidden input
// plus user-facing status messages. All messages go to stderr so stdout stays
// clean for the token itself.
package prompt

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter is the interactive I/O surface the token flows depend on.
// Implementations block until the user responds.
type Prompter interface {
	// Prompt asks for a line of visible input.
	Prompt(message string) (string, error)

	// PromptHidden asks for input without echoing it (passwords).
	PromptHidden(message string) (string, error)

	// Errorf prints an error-level message for the user.
	Errorf(format string, args ...any)

	// Infof prints an informational message for the user.
	Infof(format string, args ...any)
}

// Console implements Prompter on the process terminal.
type Console struct{}

// Compile-time check to ensure Console implements Prompter
var _ Prompter = (*Console)(nil)

// Prompt reads a line from stdin after printing the message.
func (Console) Prompt(message string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", message)
	return readLine()
}

// PromptHidden reads input without echo when stdin is a terminal, falling
// back to a plain line read otherwise (e.g. piped input in scripts).
func (Console) PromptHidden(message string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", message)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading hidden input: %w", err)
		}
		return string(password), nil
	}

	return readLine()
}

// Errorf prints an error message to stderr.
func (Console) Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}

// Infof prints an informational message to stderr.
func (Console) Infof(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func readLine() (string, error) {
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(input), nil
}
