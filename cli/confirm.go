package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/metaoverlayfs/panel/errors"
)

// LiveEnableWarning is shown before a module is added to the live set.
func LiveEnableWarning(displayName string) string {
	return fmt.Sprintf("Updates to %s will be applied instantly without a reboot.\n\n"+
		"System Crash Risk: Do not enable this for modules that modify active system components "+
		"(e.g., fonts, frameworks). Modifying files currently in use by the system can cause "+
		"immediate crashes or instability.", displayName)
}

// LiveDisableWarning is shown before a module leaves the live set.
func LiveDisableWarning(displayName string) string {
	return fmt.Sprintf("Disable live patching for %q? Future updates will require a reboot.", displayName)
}

// Prompter asks yes/no questions on a terminal.
type Prompter struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool
}

// NewPrompter reads from stdin and writes to stderr.
func NewPrompter() *Prompter {
	return &Prompter{
		In:          os.Stdin,
		Out:         os.Stderr,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Confirm prints message and asks question. assumeYes skips the prompt;
// without it a non-interactive stdin is an error.
func (p *Prompter) Confirm(message, question string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !p.Interactive {
		return false, errors.New(errors.ErrCodeInvalidInput, "confirmation required; rerun with --yes")
	}

	if message != "" {
		fmt.Fprintf(p.Out, "%s\n\n", message)
	}
	fmt.Fprintf(p.Out, "%s [y/N]: ", question)

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
