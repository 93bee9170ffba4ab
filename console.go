package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/tunebox/internal/render"
	"github.com/dgnsrekt/tunebox/internal/service"
	"github.com/dgnsrekt/tunebox/internal/voice"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var (
	errQuit        = errors.New("console closed")
	errInterrupted = errors.New("interrupted")

	offline      bool
	consoleGuild string
	consoleUser  string

	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Drive the playback core from an interactive console",
		Long: paragraph(fmt.Sprintf("\nStart an %s console against a simulated voice transport. Type %s for the list of commands.",
			keyword("interactive"), keyword("help"))),
		Example: paragraph("tunebox console\ntunebox console --offline --metrics"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
)

func init() {
	consoleCmd.Flags().BoolVar(&offline, "offline", false, "use the simulated extractor and catalog")
	consoleCmd.Flags().StringVar(&consoleGuild, "guild", "console", "guild to issue commands in")
	consoleCmd.Flags().StringVar(&consoleUser, "user", defaultUser(), "name commands are requested by")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "listener"
}

func runConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	a, err := newApp(cfg, appOptions{Offline: offline, Notify: out})
	if err != nil {
		return err
	}
	if err := a.start(); err != nil {
		return errors.Join(err, a.shutdown())
	}
	watchConfig()

	c := newConsole(a, out, service.Request{
		Guild:        consoleGuild,
		User:         consoleUser,
		VoiceChannel: "lounge",
		TextChannel:  consoleGuild,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.run(gctx, in)
	})
	g.Go(func() error {
		select {
		case <-a.lifecycle.Done():
			return errInterrupted
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, errInterrupted) {
		err = nil
	}
	return errors.Join(err, a.shutdown())
}

type console struct {
	app *app
	svc *service.Service
	out io.Writer
	req service.Request
}

func newConsole(a *app, out io.Writer, req service.Request) *console {
	return &console{app: a, svc: a.service, out: out, req: req}
}

// run executes commands read from in until quit, EOF or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, paragraph(fmt.Sprintf("tunebox console, guild %s. Type %s for commands.", keyword(c.req.Guild), keyword("help"))))
	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if c.exec(ctx, line) {
				return errQuit
			}
			c.prompt()
		}
	}
}

func (c *console) prompt() {
	fmt.Fprint(c.out, "> ")
}

// exec runs one command line and reports whether the console should quit.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help", "?":
		c.help()
	case "play", "p":
		c.print(c.svc.PlayOrEnqueue(ctx, c.req, strings.Join(args, " ")))
	case "pause":
		c.print(c.svc.Pause(c.req))
	case "resume":
		c.print(c.svc.Resume(c.req))
	case "skip", "s":
		if n, ok := c.optionalInt(args, 0, "skip [position]"); ok {
			c.print(c.svc.Skip(c.req, n))
		}
	case "stop":
		c.print(c.svc.Stop(c.req))
	case "leave":
		c.print(c.svc.Leave(ctx, c.req))
	case "queue", "q":
		if n, ok := c.optionalInt(args, 1, "queue [page]"); ok {
			c.view(c.svc.Queue(c.req, n))
		}
	case "clear":
		c.print(c.svc.Clear(c.req))
	case "remove", "rm":
		if n, ok := c.requiredInts(args, 1, "remove <position>"); ok {
			c.print(c.svc.Remove(c.req, n[0]))
		}
	case "move", "mv":
		if n, ok := c.requiredInts(args, 2, "move <from> <to>"); ok {
			c.print(c.svc.Move(c.req, n[0], n[1]))
		}
	case "shuffle":
		c.print(c.svc.Shuffle(c.req))
	case "find":
		c.view(c.svc.Find(c.req, strings.Join(args, " ")))
	case "np", "nowplaying":
		c.view(c.svc.NowPlaying(c.req))
	case "history":
		if n, ok := c.optionalInt(args, 0, "history [limit]"); ok {
			c.view(c.svc.History(c.req, n))
		}
	case "stats":
		c.view(c.svc.CacheStats())
	case "thumb":
		c.thumbnail(ctx)
	case "drop":
		c.drop(ctx)
	case "members":
		if n, ok := c.requiredInts(args, 1, "members <count>"); ok {
			c.members(n[0])
		}
	default:
		fmt.Fprintf(c.out, "Unknown command %q. Type help for the list of commands.\n", cmd)
	}
	return false
}

func (c *console) print(r service.Result) {
	fmt.Fprintln(c.out, render.Action(r.Action, r.Detail, r.OK))
}

func (c *console) view(r service.Result) {
	if !r.OK {
		c.print(r)
		return
	}
	fmt.Fprintln(c.out, r.Detail)
}

func (c *console) optionalInt(args []string, def int, usage string) (int, bool) {
	if len(args) == 0 {
		return def, true
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(c.out, "Usage:", usage)
		return 0, false
	}
	return n, true
}

func (c *console) requiredInts(args []string, count int, usage string) ([]int, bool) {
	if len(args) != count {
		fmt.Fprintln(c.out, "Usage:", usage)
		return nil, false
	}
	out := make([]int, count)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			fmt.Fprintln(c.out, "Usage:", usage)
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// drop simulates an unexpected transport loss in the console guild.
func (c *console) drop(ctx context.Context) {
	h := c.app.transport.Last()
	if h == nil || !h.IsConnected() {
		fmt.Fprintln(c.out, render.Action("connect", "I'm not connected to a voice channel.", false))
		return
	}
	channel := h.Channel()
	h.Drop()
	c.app.engine.HandleVoiceState(ctx, c.req.Guild, voice.VoiceStateChange{Before: channel})
	fmt.Fprintln(c.out, render.Action("connect", "Connection to "+channel+" lost, reconnecting...", true))
}

// members changes how many listeners the simulated channel has.
func (c *console) members(n int) {
	h := c.app.transport.Last()
	if h == nil {
		fmt.Fprintln(c.out, render.Action("connect", "I'm not connected to a voice channel.", false))
		return
	}
	h.SetMembers(n)
	fmt.Fprintf(c.out, "Listeners in %s: %d\n", h.Channel(), n)
}

func (c *console) thumbnail(ctx context.Context) {
	g := c.app.engine.Registry().GetOrCreate(c.req.Guild)
	sess, ok := g.Player.Current()
	if !ok {
		fmt.Fprintln(c.out, render.Action("play", "No song is currently playing.", false))
		return
	}
	if sess.Track.ThumbnailURL == "" {
		fmt.Fprintln(c.out, "No artwork for", sess.Track.Title)
		return
	}
	data, err := c.app.thumbs.Fetch(ctx, sess.Track.ThumbnailURL)
	if err != nil {
		fmt.Fprintln(c.out, render.Action("play", "Could not fetch artwork: "+err.Error(), false))
		return
	}
	fmt.Fprintf(c.out, "Artwork for %s: %s\n", sess.Track.Title, humanize.Bytes(uint64(len(data))))
}

var consoleHelp = [][2]string{
	{"play <query|link>", "play a song or add it to the queue"},
	{"pause / resume", "pause or resume the current song"},
	{"skip [position]", "skip the current song, or skip ahead to a queue position"},
	{"stop", "stop playback and clear the queue"},
	{"leave", "stop everything and leave the voice channel"},
	{"queue [page]", "show the queue"},
	{"clear", "clear the queue"},
	{"remove <position>", "remove a song from the queue"},
	{"move <from> <to>", "move a song within the queue"},
	{"shuffle", "shuffle the queue"},
	{"find <text>", "search the queue"},
	{"np", "show the current song"},
	{"history [limit]", "show recently played songs"},
	{"stats", "show cache statistics"},
	{"thumb", "fetch the artwork of the current song"},
	{"drop", "simulate an unexpected disconnect"},
	{"members <count>", "set the number of listeners in the channel"},
	{"quit", "exit the console"},
}

func (c *console) help() {
	for _, h := range consoleHelp {
		fmt.Fprintf(c.out, "  %s  %s\n", keyword(fmt.Sprintf("%-20s", h[0])), h[1])
	}
	fmt.Fprintf(c.out, "\nOffline demo playlist: %s\n", demoPlaylist)
}
