package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/chatlog"
	"github.com/stevegt/gptcli/client"
	conf "github.com/stevegt/gptcli/config"
	"github.com/stevegt/gptcli/core"
	"github.com/stevegt/gptcli/models"
	"github.com/stevegt/gptcli/persist"
	"github.com/stevegt/gptcli/render"
)

// Version is the version of the gpt command.
const Version = "2.0.0"

// attachPrefix joins the prompt and the attached context.
const attachPrefix = " Attached context: "

// errUsage means the command line asked for nothing to do.
var errUsage = errors.New("no prompt given")

type cliArgs struct {
	Prompt         []string `arg:"" optional:"" help:"Prompt to send.  Multiple words are joined with spaces."`
	Display        bool     `short:"d" help:"List all conversations, or show the one selected with -c."`
	Reply          bool     `short:"r" help:"Reply to the most recent conversation, or to the one selected with -c."`
	Private        bool     `short:"p" help:"Do not save this round trip."`
	ConversationID *int     `name:"conversation-id" short:"c" help:"Conversation index; negative values count back from the most recent."`
	Model          string   `short:"m" help:"Model id or alias (${aliases})."`
	System         *string  `short:"s" help:"System message for a new conversation."`
	Temperature    *float64 `short:"t" help:"Sampling temperature."`
	Fileread       bool     `short:"f" help:"Append the attached context file to the prompt."`
	Filewrite      bool     `short:"w" help:"Edit the attached context file and exit."`
	Models         bool     `help:"List all known models."`
	Tokens         bool     `help:"Print the token count of the request instead of sending it."`
	Verbose        bool     `short:"v" help:"Show debug information on stderr."`
	Version        bool     `help:"Show version of gpt and its conversation store."`
}

// CliConfig contains the configuration for the gpt cli.
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Home is the config directory; $GPT_CLI_HOME or ~/.gpt_cli if
	// empty.
	Home string
	// Dispatcher replaces the transports built from API keys.
	Dispatcher *core.Dispatcher
	// Context is the parent of the round trip context.
	Context context.Context
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "gpt",
		Description: "Chat with OpenAI, xAI, Anthropic and Google models from the command line.",
		Version:     Version,
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Cli parses the given arguments and runs one command.  Failures
// are reported on config.Stderr and turned into rc; err is only set
// if the parser cannot be built.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	var cli cliArgs
	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
			"aliases": models.Default().Legend(),
		},
	}
	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return 1, nil
	}

	if cli.Verbose {
		os.Setenv("DEBUG", "1")
	}
	Debug("args: %+v", cli)

	a := &app{args: &cli, config: config}
	err = a.run()
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, errUsage):
		ctx.PrintUsage(false)
		return 1, nil
	case errors.Is(err, core.ErrInterrupted):
		Fpf(config.Stderr, "\ninterrupted; nothing was saved\n")
		return 0, nil
	default:
		Fpf(config.Stderr, "error: %v\n", err)
		if errors.Is(err, core.ErrNoTransport) {
			Fpf(config.Stderr, "set %s to use this model\n", keyHint(a.model))
		}
		return 1, nil
	}
}

// app runs one parsed command line.
type app struct {
	args   *cliArgs
	config *CliConfig
	cfg    *conf.Config
	reg    *models.Registry
	out    *render.Terminal
	model  string
}

func (a *app) run() (err error) {
	defer Return(&err)
	args := a.args

	if args.Version {
		Pf("gpt version %s\n", a.config.Version)
		Pf("conversation store version %s\n", persist.Version)
		return
	}

	home := a.config.Home
	if home == "" {
		home, err = conf.Dir()
		Ck(err)
	}
	a.cfg, err = conf.Load(home)
	Ck(err)
	a.out = render.New(a.config.Stdout, a.cfg.Markdown)
	a.reg = models.Default()
	if a.config.Dispatcher != nil {
		a.reg = a.config.Dispatcher.Registry()
	}

	switch {
	case args.Models:
		a.listModels()
		return
	case args.Filewrite:
		return EditFile(a.cfg.AttachPath(), a.cfg.Editor)
	}

	store, err := core.OpenStore(a.persister())
	if err != nil {
		return
	}
	if args.Display {
		return a.display(store)
	}

	prompt := strings.TrimSpace(strings.Join(args.Prompt, " "))
	if prompt == "" {
		return errUsage
	}
	a.model = a.cfg.DefaultModel
	if args.Model != "" {
		a.model = args.Model
	}
	a.model, err = a.reg.Resolve(a.model)
	if err != nil {
		return
	}
	logPrompt := prompt
	if args.Fileread {
		prompt, err = a.attach(prompt)
		if err != nil {
			return
		}
	}

	req := core.Request{
		Prompt:    prompt,
		LogPrompt: logPrompt,
		Model:     a.model,
		System:    a.cfg.SystemPrompt,
		Reply:     args.Reply,
		Index:     -1,
		Private:   args.Private,
		Params:    client.Params{MaxTokens: a.cfg.MaxTokens},
	}
	if args.System != nil {
		req.System = *args.System
	}
	if args.ConversationID != nil {
		req.Index = *args.ConversationID
	}
	if args.Temperature != nil {
		t := float32(*args.Temperature)
		req.Params.Temperature = &t
	}

	if args.Tokens {
		return a.tokens(store, req)
	}
	return a.send(store, req)
}

func (a *app) persister() core.Persister {
	path := a.cfg.StorePath()
	if a.cfg.StoreBackend == conf.BackendBolt {
		return persist.NewBoltStore(path)
	}
	fs := persist.NewFileStore(path)
	fs.Stderr = a.config.Stderr
	return fs
}

func (a *app) listModels() {
	for _, m := range a.reg.List() {
		Pl(m.String())
	}
}

func (a *app) display(store *core.Store) (err error) {
	if a.args.ConversationID != nil {
		conv, _, err := store.Get(*a.args.ConversationID)
		if err != nil {
			return err
		}
		a.out.ShowConversation(conv)
		return nil
	}
	convs, err := store.Conversations()
	if err != nil {
		return
	}
	a.out.ShowSummaries(convs)
	return
}

// attach appends the attached context file to prompt.
func (a *app) attach(prompt string) (out string, err error) {
	path := a.cfg.AttachPath()
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("no attached context in %s; run gpt -w to create it", path)
	}
	if err != nil {
		return
	}
	return prompt + attachPrefix + string(buf), nil
}

// tokens prints the token count of the conversation req would send.
func (a *app) tokens(store *core.Store, req core.Request) (err error) {
	var conv *core.Conversation
	if req.Reply {
		conv, _, err = store.Get(req.Index)
		if err != nil {
			return
		}
	} else {
		conv = core.NewConversation("", req.System)
	}
	err = conv.AppendUser(req.Prompt)
	if err != nil {
		return
	}
	n, err := conv.TokenCount()
	if err != nil {
		return
	}
	Pf("%d\n", n)
	return
}

func (a *app) send(store *core.Store, req core.Request) (err error) {
	parent := a.config.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	d := a.config.Dispatcher
	if d == nil {
		d, err = newDispatcher(ctx, a.cfg, a.reg)
		if err != nil {
			return
		}
	}

	chat := &core.Chat{
		Store:      store,
		Dispatcher: d,
		Log:        chatlog.New(a.cfg.LogPath()),
		Stderr:     a.config.Stderr,
	}
	res, err := chat.RoundTrip(ctx, req, a.out)
	a.out.End()
	if err != nil {
		return
	}
	Debug("conversation %q at index %d", res.Conversation.Name(), res.Index)
	return
}
