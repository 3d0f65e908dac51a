package convert

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// CleanupChoice is a user's answer to the "output exists, overwrite?" prompt.
type CleanupChoice int

const (
	// CleanupNo skips this series and leaves the existing output alone.
	CleanupNo CleanupChoice = iota
	// CleanupYes removes this series' existing output before conversion.
	CleanupYes
	// CleanupYesToAll answers yes for this and every remaining series.
	CleanupYesToAll
	// CleanupNoToAll answers no for this and every remaining series.
	CleanupNoToAll
)

// CleanupPrompter decides whether existing output for a series may be
// removed. Implementations are consulted sequentially before any conversion
// work starts, so the decision order matches the series processing order.
type CleanupPrompter interface {
	Ask(path string) (CleanupChoice, error)
}

// ForcePrompter answers yes to every cleanup question without asking.
// Selected by the --force flag.
type ForcePrompter struct{}

// Ask always grants removal.
func (ForcePrompter) Ask(string) (CleanupChoice, error) { return CleanupYesToAll, nil }

// TerminalPrompter asks the user interactively on the terminal.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter returns a prompter reading stdin and writing stdout.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stdout}
}

// Ask prompts until the user gives one of y, a, n or q. Yes-to-all and
// no-to-all let the user answer once for a long batch.
func (p *TerminalPrompter) Ask(path string) (CleanupChoice, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	reader := p.reader
	for {
		fmt.Fprintf(p.Out, "output %s already exists, remove it? [y]es / yes to [a]ll / [n]o / no to all ([q]): ", path)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return CleanupNo, errors.Wrap(err, "reading cleanup answer")
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return CleanupYes, nil
		case "a", "all", "yes to all":
			return CleanupYesToAll, nil
		case "n", "no":
			return CleanupNo, nil
		case "q", "no to all":
			return CleanupNoToAll, nil
		}
		fmt.Fprintln(p.Out, "please answer y, a, n or q")
	}
}

// cleanupPass walks the sanitized output paths in series order and resolves
// which ones may be (re)written. Paths that do not exist are always allowed.
// The sticky all/none answers short-circuit the remaining prompts.
func cleanupPass(paths []string, prompter CleanupPrompter) (map[string]bool, error) {
	allowed := make(map[string]bool, len(paths))
	var sticky *CleanupChoice

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			allowed[path] = true
			continue
		}

		choice := CleanupNo
		if sticky != nil {
			choice = *sticky
		} else {
			var err error
			choice, err = prompter.Ask(path)
			if err != nil {
				return nil, err
			}
			if choice == CleanupYesToAll || choice == CleanupNoToAll {
				c := choice
				sticky = &c
			}
		}

		switch choice {
		case CleanupYes, CleanupYesToAll:
			if err := os.RemoveAll(path); err != nil {
				return nil, errors.Wrapf(err, "removing existing output %s", path)
			}
			allowed[path] = true
		default:
			allowed[path] = false
		}
	}
	return allowed, nil
}
