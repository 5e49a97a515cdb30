// Package console is the offline operator REPL: an interactive
// go-prompt shell over a loaded colony World. It lists operations and
// missions, dumps a squad's formation and member roster, and can
// force a wave-wipe on a stuck AttackMission — the inspection and
// override surface an operator needs between ticks when running the
// controller outside a live host.
package console

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/colonygrid/foreman/attack"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/squad"
)

const (
	defaultPromptPrefix = "foreman> "
	maxHistoryEntries   = 128
)

// WorldSource returns the World an operator command should inspect.
// Controller.World satisfies this once a tick has run; tests pass a
// fixed *kernel.World directly.
type WorldSource func() *kernel.World

// Console reads command lines from a reader (defaulting to an
// interactive go-prompt session over os.Stdin) and executes them
// against whatever World WorldSource currently returns.
type Console struct {
	world   WorldSource
	log     *slog.Logger
	reader  io.Reader
	history []string
	out     io.Writer
}

// New returns a Console bound to world. Output goes to os.Stdout and is
// also logged at Info level; command errors are reported the same way.
func New(world WorldSource, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{world: world, log: log, reader: os.Stdin, out: os.Stdout}
}

// WithReader sets a custom reader, enabling non-interactive tests.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes commands until the reader hits EOF (non-interactive
// mode) or, over os.Stdin, until the process is interrupted.
func (c *Console) Run() {
	if c.reader != os.Stdin {
		c.runScanner()
		return
	}
	c.runInteractive()
}

func (c *Console) runScanner() {
	sc := newLineScanner(c.reader)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) runInteractive() {
	for {
		line := prompt.Input(defaultPromptPrefix, c.complete,
			prompt.OptionTitle("foreman console"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefix(defaultPromptPrefix),
			prompt.OptionCompletionOnDown(),
			prompt.OptionMaxSuggestion(8),
		)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		c.execute(line)
	}
}

var commandNames = []string{"operations", "missions", "rooms", "squad", "wave-wipe", "help", "exit"}

func (c *Console) complete(doc prompt.Document) []prompt.Suggest {
	word := doc.GetWordBeforeCursor()
	suggestions := make([]prompt.Suggest, 0, len(commandNames))
	for _, name := range commandNames {
		suggestions = append(suggestions, prompt.Suggest{Text: name})
	}
	return prompt.FilterHasPrefix(suggestions, word, true)
}

func (c *Console) execute(line string) {
	c.history = append(c.history, line)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[len(c.history)-maxHistoryEntries:]
	}

	fields := strings.Fields(line)
	cmdName, args := fields[0], fields[1:]

	w := c.world()
	if w == nil {
		c.printf("no world loaded yet")
		return
	}

	switch cmdName {
	case "operations", "ops":
		c.listOperations(w)
	case "missions":
		c.listMissions(w)
	case "rooms":
		c.listRooms(w)
	case "squad":
		c.dumpSquad(w, args)
	case "wave-wipe":
		c.forceWaveWipe(w, args)
	case "help":
		c.printf("commands: %s", strings.Join(commandNames, ", "))
	default:
		c.printf("unknown command %q; try 'help'", cmdName)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
	c.log.Info(fmt.Sprintf(format, args...))
}

func (c *Console) listOperations(w *kernel.World) {
	var lines []string
	kernel.Storage[planner.Operation](w).Each(func(e kernel.Entity, op *planner.Operation) {
		lines = append(lines, fmt.Sprintf("%s kind=%s owner=%s children=%d", e, op.Kind, op.Owner, len(op.Children)))
	})
	c.printLines("operations", lines)
}

func (c *Console) listMissions(w *kernel.World) {
	var lines []string
	kernel.Storage[planner.Mission](w).Each(func(e kernel.Entity, m *planner.Mission) {
		room := ""
		if rd, ok := kernel.Storage[roomdata.Data](w).Get(m.GetRoom()); ok {
			room = string(rd.Name)
		}
		lines = append(lines, fmt.Sprintf("%s kind=%s room=%s owner=%s children=%d", e, m.Kind, room, m.Owner, len(m.Children)))
	})
	c.printLines("missions", lines)
}

func (c *Console) listRooms(w *kernel.World) {
	var lines []string
	kernel.Storage[roomdata.Data](w).Each(func(e kernel.Entity, d *roomdata.Data) {
		lines = append(lines, fmt.Sprintf("%s %s owner=%v hostile_creeps=%v hostile_structures=%v", e, d.Name, d.Owner, d.HasHostileCreeps, d.HasHostileStructures))
	})
	c.printLines("rooms", lines)
}

func (c *Console) printLines(label string, lines []string) {
	if len(lines) == 0 {
		c.printf("%s: (none)", label)
		return
	}
	sort.Strings(lines)
	c.printf("%s (%d):", label, len(lines))
	for _, l := range lines {
		fmt.Fprintln(c.out, "  "+l)
	}
}

func (c *Console) dumpSquad(w *kernel.World, args []string) {
	if len(args) != 1 {
		c.printf("usage: squad <entity>")
		return
	}
	e, err := kernel.ParseEntity(args[0])
	if err != nil {
		c.printf("squad: %v", err)
		return
	}
	ctx, ok := kernel.Storage[squad.Context](w).Get(e)
	if !ok {
		c.printf("squad: no squad.Context on %s", e)
		return
	}
	c.printf("squad %s: anchor=%v strict_hold=%d spawn_complete=%v", e, ctx.Anchor, ctx.StrictHoldTicks, ctx.SpawnComplete)
	for i, s := range ctx.Slots {
		status := "empty"
		if !s.Member.IsNil() {
			status = s.Member.String()
			if !w.IsAlive(s.Member) {
				status += " (dead)"
			}
		}
		fmt.Fprintf(c.out, "  slot %d: role=%d offset=%v member=%s\n", i, s.Role, s.Offset, status)
	}
}

func (c *Console) forceWaveWipe(w *kernel.World, args []string) {
	if len(args) != 1 {
		c.printf("usage: wave-wipe <mission-entity>")
		return
	}
	e, err := kernel.ParseEntity(args[0])
	if err != nil {
		c.printf("wave-wipe: %v", err)
		return
	}
	if attack.ForceWaveWipe(w, e) {
		c.printf("wave-wipe: reset %s", e)
		return
	}
	c.printf("wave-wipe: %s has no attack.Data component", e)
}

func newLineScanner(r io.Reader) *lineScanner { return &lineScanner{r: r} }

// lineScanner is a minimal bufio.Scanner substitute kept local so
// this package's only non-stdlib import stays go-prompt.
type lineScanner struct {
	r    io.Reader
	buf  []byte
	line string
	err  error
}

func (s *lineScanner) Scan() bool {
	for {
		if i := indexByte(s.buf, '\n'); i >= 0 {
			s.line = string(s.buf[:i])
			s.buf = s.buf[i+1:]
			return true
		}
		chunk := make([]byte, 4096)
		n, err := s.r.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if len(s.buf) > 0 {
				s.line = string(s.buf)
				s.buf = nil
				return true
			}
			s.err = err
			return false
		}
	}
}

func (s *lineScanner) Text() string { return s.line }

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
