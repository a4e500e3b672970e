package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks yes/no questions. Off a terminal it never blocks: the
// answer is yes only when assumeYes is set.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
}

// NewPrompter builds a prompter on in. interactive reports whether in is a
// terminal; callers detect it with term.IsTerminal.
func NewPrompter(in io.Reader, out io.Writer, interactive, assumeYes bool) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
		assumeYes:   assumeYes,
	}
}

// Confirm asks question and waits for y or n. Anything else re-asks. End of
// input answers no.
func (p *Prompter) Confirm(question string) bool {
	if p.assumeYes {
		return true
	}
	if !p.interactive {
		return false
	}
	for {
		fmt.Fprintf(p.out, "%s [y/n]: ", question)
		line, err := p.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			fmt.Fprintln(p.out)
			return false
		}
		fmt.Fprintln(p.out, "Please enter y or n.")
	}
}
