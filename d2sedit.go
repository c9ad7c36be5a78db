package main

// savefile reader/editor for .d2s character saves
//
// example usage:
//
// d2sedit Paul.d2s
// d2sedit load Paul.d2s
// d2sedit set strength 200
// d2sedit set "gold stash" 2500000
// d2sedit set level 80
// d2sedit set class necro
// d2sedit skill 12 20
// d2sedit save
//
// The save directory is read from d2sedit.ini (or --dir)

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"d2sedit/config"
	"d2sedit/errors"
	"d2sedit/history"
	"d2sedit/stash"
	"d2sedit/types"
	"d2sedit/watch"
	"d2sedit/writers"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := newCLIApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// editor carries what every command needs.  cfg is filled in by setup, once the global flags are known.
type editor struct {
	cfg *config.Config
	out io.Writer
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(out io.Writer) *cli.App {
	e := &editor{out: out}
	app := &cli.App{
		Name:      "d2sedit",
		Usage:     "Save file reader/editor for .d2s characters",
		Version:   Version,
		ArgsUsage: "[file]",
		Writer:    out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Save directory (overrides config)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file (default: " + config.FILENAME + ")"},
		},
		Before: e.setup,
		Action: e.show,
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Load a file from the save directory and start editing it",
				ArgsUsage: "<file>",
				Action:    e.load,
			},
			{
				Name:      "get",
				Usage:     "Display the current value of something",
				ArgsUsage: "<what>",
				Action:    e.get,
			},
			{
				Name:      "set",
				Usage:     "Set the value of something",
				ArgsUsage: "<what> <to>",
				Action:    e.set,
			},
			{
				Name:      "skill",
				Usage:     "Set a skill level",
				ArgsUsage: "<id 0-29> <level>",
				Action:    e.skill,
			},
			{
				Name:   "dump",
				Usage:  "List all available info",
				Action: e.dump,
			},
			{
				Name:   "save",
				Usage:  "Write the edited file back",
				Action: e.save,
			},
			{
				Name:   "discard",
				Usage:  "Throw away the current edits",
				Action: e.discard,
			},
			{
				Name:   "watch",
				Usage:  "Watch the save directory and report changes as the game saves",
				Action: e.watch,
			},
			{
				Name:      "history",
				Usage:     "List past edits",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 50, Usage: "Maximum number of entries (0 for all)"},
				},
				Action: e.history,
			},
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func (e *editor) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("dir") {
		cfg.Dir = c.String("dir")
	}
	e.cfg = cfg
	return nil
}

func (e *editor) show(c *cli.Context) error {
	if c.NArg() == 0 {
		if err := cli.ShowAppHelp(c); err != nil {
			return err
		}
		return errors.NewContract("Input file expected.")
	}
	sd, err := types.Load(e.cfg.Resolve(c.Args().First()))
	if err != nil {
		return err
	}
	print_file_stats(e.out, sd)
	print_character_stats(e.out, sd)
	return nil
}

func (e *editor) load(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.NewContract("Load what?  Filename expected.")
	}
	filename := e.cfg.Resolve(c.Args().First())
	sd, err := types.Load(filename)
	if err != nil {
		return err
	}
	if err := stash.Write(e.cfg.Stash, stash.New(filename, sd)); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Loaded", filename)
	return nil
}

// retrieve gets the session started by "load" back out of the stash.
func (e *editor) retrieve() (*stash.Session, *types.Savedata, error) {
	s, err := stash.Read(e.cfg.Stash)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewContract("Nothing loaded.  Use \"load <file>\" first.")
		}
		return nil, nil, err
	}
	sd, err := s.Savedata()
	if err != nil {
		return nil, nil, err
	}
	return s, sd, nil
}

func (e *editor) get(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.NewContract("Get what?  Gettables are:\n" + list_ettables())
	}
	g, err := find_ettable(c.Args().First())
	if err != nil {
		return err
	}
	_, sd, err := e.retrieve()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%v: %v\n", g.name, g.get(sd))
	return nil
}

func (e *editor) set(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.NewContract("Set what?  Settables are:\n" + list_ettables())
	}
	g, err := find_ettable(c.Args().First())
	if err != nil {
		return err
	}
	if c.NArg() < 2 {
		return errors.NewContract(fmt.Sprintf("Set %v to what?", g.name))
	}

	s, sd, err := e.retrieve()
	if err != nil {
		return err
	}
	to, err := g.set(sd, c.Args().Get(1))
	if err != nil {
		return err
	}
	if err := s.Update(sd); err != nil {
		return err
	}
	if err := stash.Write(e.cfg.Stash, s); err != nil {
		return err
	}
	fmt.Fprintln(e.out, g.name, "set to", to)
	return nil
}

func (e *editor) skill(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.NewContract("Skill id and level expected.")
	}
	id, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return errors.NewContract(fmt.Sprintf("%q is not a skill id", c.Args().Get(0)))
	}
	level, err := parse_uint(c.Args().Get(1), 8, "skill level")
	if err != nil {
		return err
	}

	s, sd, err := e.retrieve()
	if err != nil {
		return err
	}
	if err := sd.SetSkill(id, uint8(level)); err != nil {
		return err
	}
	if err := s.Update(sd); err != nil {
		return err
	}
	if err := stash.Write(e.cfg.Stash, s); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Skill %v set to %v\n", id, level)
	return nil
}

func (e *editor) dump(c *cli.Context) error {
	s, sd, err := e.retrieve()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, "File:         ", s.Filename)
	print_file_stats(e.out, sd)
	for _, g := range ettables {
		fmt.Fprintf(e.out, "%-14s %v\n", g.name+":", g.get(sd))
	}
	fmt.Fprintf(e.out, "Skills: %v\n", format_skills(sd.Skills()))
	print_skill_warnings(e.out, sd.Skills())

	orig, err := s.OriginalSavedata()
	if err != nil {
		return err
	}
	changes := types.Diff(orig, sd)
	if len(changes) > 0 {
		fmt.Fprintln(e.out, "Unsaved changes:")
		for _, ch := range changes {
			fmt.Fprintln(e.out, "  ", ch)
		}
	}
	return nil
}

func (e *editor) save(c *cli.Context) error {
	s, sd, err := e.retrieve()
	if err != nil {
		return err
	}
	// The game may have saved over the file since it was loaded; don't throw that away
	if err := s.CheckFresh(); err != nil {
		return err
	}
	orig, err := s.OriginalSavedata()
	if err != nil {
		return err
	}
	changes := types.Diff(orig, sd)

	if e.cfg.Backup {
		name, err := writers.Backup(s.Filename)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, s.Filename, "backed up to", name)
	}

	if err := sd.Save(s.Filename); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "New file written to", s.Filename)
	for _, ch := range changes {
		fmt.Fprintln(e.out, "  ", ch)
	}

	if e.cfg.History != "" {
		// the file is already written; a journal failure is worth a warning, not an error
		if err := e.record(c.Context, s.Filename, changes); err != nil {
			log.Printf("failed to record history: %v", err)
		}
	}

	if err := stash.Remove(e.cfg.Stash); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Temporary data cleaned up")
	return nil
}

func (e *editor) record(ctx context.Context, filename string, changes []types.Change) error {
	db, err := history.Open(e.cfg.History)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = history.Record(ctx, db, filename, changes, time.Now())
	return err
}

func (e *editor) discard(c *cli.Context) error {
	if err := stash.Remove(e.cfg.Stash); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Temporary data cleaned up")
	return nil
}

func (e *editor) watch(c *cli.Context) error {
	w := watch.New(e.cfg.Dir, e.cfg.Settle)
	events := make(chan *watch.Event)
	if err := w.Start(events); err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	fmt.Fprintln(e.out, "Watching", e.cfg.Dir, "(Ctrl-C to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			print_event(e.out, ev)
		}
	}
}

func print_event(w io.Writer, ev *watch.Event) {
	fmt.Fprintf(w, "%v: level %v %v\n", ev.File, ev.Level, ev.Class)
	if ev.First {
		fmt.Fprintln(w, "   first seen")
	}
	for _, ch := range ev.Changes {
		fmt.Fprintln(w, "  ", ch)
	}
}

func (e *editor) history(c *cli.Context) error {
	if e.cfg.History == "" {
		return errors.NewContract("History is disabled.  Set \"history\" in " + config.FILENAME + " or D2SEDIT_HISTORY.")
	}
	db, err := history.Open(e.cfg.History)
	if err != nil {
		return err
	}
	defer db.Close()

	file := ""
	if c.NArg() > 0 {
		file = e.cfg.Resolve(c.Args().First())
	}
	entries, err := history.List(c.Context, db, file, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(e.out, "No edits recorded")
	}
	for _, entry := range entries {
		fmt.Fprintln(e.out, entry)
	}
	return nil
}
