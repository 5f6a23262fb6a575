// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quota

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// TerminalPrompter asks on Out and reads the answer from In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	once   sync.Once
	reader *bufio.Reader
}

// Confirm prints the wait and the reset instant, then reads one line.
// Only an explicit yes (y, yes, s, si, sí) confirms. EOF and a cancelled
// context decline.
func (p *TerminalPrompter) Confirm(ctx context.Context, n Notice) (bool, error) {
	p.once.Do(func() { p.reader = bufio.NewReader(p.In) })

	rule := strings.Repeat("=", 80)
	fmt.Fprintf(p.Out, "\n%s\n", rule)
	fmt.Fprintf(p.Out, "Daily limit reached: %d requests in the last 24 hours.\n", n.Limit)
	fmt.Fprintf(p.Out, "Wait required: %s\n", FormatWait(n.Wait))
	fmt.Fprintf(p.Out, "More requests possible from: %s\n", n.ResetAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(p.Out, "%s\n\n", rule)
	fmt.Fprint(p.Out, "Wait and continue automatically? (y/n): ")

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, nil
		}
		return isAffirmative(a.line), nil
	}
}

func isAffirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "s", "si", "sí":
		return true
	}
	return false
}

// FormatWait renders d as hours, minutes and seconds.
func FormatWait(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%d hours, %d minutes and %d seconds", h, m, d/time.Second)
}
