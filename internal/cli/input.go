package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptInput prompts for a single line of input
func PromptInput(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(input), nil
}

// PromptConfirm prompts for yes/no confirmation
func PromptConfirm(in io.Reader, out io.Writer, prompt string, defaultYes bool) (bool, error) {
	var suffix string
	if defaultYes {
		suffix = " [Y/n]: "
	} else {
		suffix = " [y/N]: "
	}

	input, err := PromptInput(in, out, prompt+suffix)
	if err != nil {
		return false, err
	}

	input = strings.ToLower(strings.TrimSpace(input))

	if input == "" {
		return defaultYes, nil
	}

	return input == "y" || input == "yes", nil
}

// PromptChoice prompts for a choice from a list of options
func PromptChoice(in io.Reader, out io.Writer, prompt string, choices []string) (int, error) {
	if len(choices) == 0 {
		return -1, fmt.Errorf("nothing to choose from")
	}

	fmt.Fprintln(out, prompt)
	for i, choice := range choices {
		fmt.Fprintf(out, "  %d) %s\n", i+1, choice)
	}

	input, err := PromptInput(in, out, fmt.Sprintf("Enter choice (1-%d): ", len(choices)))
	if err != nil {
		return -1, err
	}

	// Try to parse as number
	var choice int
	if _, err := fmt.Sscanf(input, "%d", &choice); err == nil {
		if choice >= 1 && choice <= len(choices) {
			return choice - 1, nil
		}
	}

	// Try to match as string
	for i, c := range choices {
		if strings.EqualFold(c, input) {
			return i, nil
		}
	}

	return -1, fmt.Errorf("invalid choice: %s", input)
}

// interactive reports whether prompts can be answered. Non-file readers are
// scripted input and count as interactive.
func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}
