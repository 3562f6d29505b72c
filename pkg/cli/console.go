package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/tool"
	"github.com/m-mizutani/quakead/pkg/usecase/ask"
	"github.com/m-mizutani/quakead/pkg/usecase/campaign"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const consoleHelp = `Commands:
  stats                          database overview
  quakes [days] [min_mag]        recent earthquakes (default 7 days)
  find [mag=N km=N value=N uninsured=true|false]
                                 search targets, unset filters keep their last value
  show [n]                       list targets, or details of target n
  select n                       pick target n for email drafting
  email [context...]             draft an email for the selected target
  regen                          draft again with the same context
  save                           save the draft to the campaign history
  history                        list saved campaigns
  export [campaign-id]           export a campaign (default: last saved)
  ask question...                ask Gemini using the bridge tools
  reset                          clear targets, selection and draft
  help                           show this help
  exit                           leave the console
`

var errQuit = goerr.New("quit")

// console runs one operator session. It is driven line by line so the
// dispatcher can be used without a terminal.
type console struct {
	w       io.Writer
	uc      *campaign.UseCase
	session *campaign.Session
	ask     *ask.UseCase

	// busy starts a progress indicator and returns its stop function.
	busy func(msg string) func()

	lastSaved model.CampaignID
}

// execute runs one console line. It returns errQuit on exit.
func (c *console) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help", "?":
		fmt.Fprint(c.w, consoleHelp)
		return nil
	case "exit", "quit":
		return errQuit
	case "stats":
		return c.stats(ctx)
	case "quakes":
		return c.quakes(ctx, args)
	case "find":
		return c.find(ctx, args)
	case "show":
		return c.show(args)
	case "select":
		return c.selectTarget(args)
	case "email":
		return c.email(ctx, strings.Join(args, " "))
	case "regen":
		if c.session.Draft == nil {
			return goerr.Wrap(campaign.ErrNoDraft, "nothing to regenerate, use email first")
		}
		return c.email(ctx, c.session.CampaignContext)
	case "save":
		return c.save(ctx)
	case "history":
		return c.history(ctx)
	case "export":
		return c.export(ctx, args)
	case "ask":
		return c.askQuestion(ctx, strings.Join(args, " "))
	case "reset":
		c.session.Reset()
		fmt.Fprintf(c.w, "Session cleared\n")
		return nil
	}

	return goerr.New("unknown command, type help", goerr.V("command", name))
}

func (c *console) run(msg string) func() {
	if c.busy == nil {
		return func() {}
	}
	return c.busy(msg)
}

func (c *console) stats(ctx context.Context) error {
	stats, err := c.uc.Stats(ctx, c.session)
	if err != nil {
		return err
	}
	printStats(c.w, stats)
	return nil
}

func (c *console) quakes(ctx context.Context, args []string) error {
	days, minMag := 7, 0.0
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return goerr.New("days must be a positive integer", goerr.V("days", args[0]))
		}
		days = v
	}
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return goerr.New("min_mag must be a number", goerr.V("min_mag", args[1]))
		}
		minMag = v
	}

	events, err := c.uc.RecentEarthquakes(ctx, c.session, days, minMag)
	if err != nil {
		return err
	}
	printEvents(c.w, events)
	return nil
}

// parseCriteria applies key=value filters on top of base.
func parseCriteria(base model.Criteria, args []string) (model.Criteria, error) {
	criteria := base
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return criteria, goerr.New("filter must be key=value", goerr.V("filter", arg))
		}

		switch strings.ToLower(key) {
		case "uninsured":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return criteria, goerr.New("uninsured must be true or false", goerr.V("value", value))
			}
			criteria.RequireUninsured = b
			continue
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return criteria, goerr.New("filter value must be a number", goerr.V("filter", key), goerr.V("value", value))
		}
		switch strings.ToLower(key) {
		case "mag", "min_mag":
			criteria.MinMagnitude = f
		case "km", "max_km":
			criteria.MaxDistanceKm = f
		case "value", "min_value":
			criteria.MinHouseValue = f
		default:
			return criteria, goerr.New("unknown filter", goerr.V("filter", key))
		}
	}
	return criteria, nil
}

func (c *console) find(ctx context.Context, args []string) error {
	criteria, err := parseCriteria(c.session.Criteria, args)
	if err != nil {
		return err
	}

	done := c.run("searching targets...")
	result, err := c.uc.FindTargets(ctx, c.session, criteria)
	done()
	if err != nil {
		return err
	}

	printTargetResult(c.w, result)
	return nil
}

func (c *console) show(args []string) error {
	if len(args) == 0 {
		if len(c.session.Targets) == 0 {
			fmt.Fprintf(c.w, "No targets, use find first\n")
			return nil
		}
		printCriteria(c.w, c.session.Criteria)
		printTargets(c.w, c.session.Targets)
		return nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return goerr.New("target number must be an integer", goerr.V("target", args[0]))
	}
	if n < 1 || n > len(c.session.Targets) {
		return goerr.Wrap(campaign.ErrNoTarget, "target number out of range",
			goerr.V("target", n), goerr.V("targets", len(c.session.Targets)))
	}
	printTarget(c.w, c.session.Targets[n-1])
	return nil
}

func (c *console) selectTarget(args []string) error {
	if len(args) != 1 {
		return goerr.New("usage: select n")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return goerr.New("target number must be an integer", goerr.V("target", args[0]))
	}

	t, err := c.session.Select(n)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.w, "Selected %s\n", t.Person.FullName())
	printTarget(c.w, t)
	return nil
}

func (c *console) email(ctx context.Context, campaignContext string) error {
	if campaignContext == "" {
		campaignContext = c.session.CampaignContext
	}

	done := c.run("drafting email...")
	draft, err := c.uc.GenerateEmail(ctx, c.session, campaignContext)
	done()
	if err != nil {
		return err
	}

	printDraft(c.w, draft)
	return nil
}

func (c *console) save(ctx context.Context) error {
	saved, err := c.uc.Save(ctx, c.session)
	if err != nil {
		return err
	}
	c.lastSaved = saved.ID
	fmt.Fprintf(c.w, "Saved campaign %s\n", saved.ID)
	return nil
}

func (c *console) history(ctx context.Context) error {
	campaigns, err := c.uc.History(ctx, 0, 20)
	if err != nil {
		return err
	}
	printCampaigns(c.w, campaigns)
	return nil
}

func (c *console) export(ctx context.Context, args []string) error {
	id := c.lastSaved
	if len(args) > 0 {
		id = model.CampaignID(args[0])
	}
	if id == "" {
		return goerr.New("no campaign to export, save one or give its ID")
	}

	location, err := c.uc.Export(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.w, "Exported to %s\n", location)
	return nil
}

func (c *console) askQuestion(ctx context.Context, question string) error {
	if c.ask == nil {
		return goerr.Wrap(campaign.ErrNotConfig, "gemini is not configured")
	}

	done := c.run("thinking...")
	answer, err := c.ask.Ask(ctx, question)
	done()
	if err != nil {
		return err
	}

	for _, call := range answer.Calls {
		printCall(c.w, call)
	}
	fmt.Fprintf(c.w, "%s\n", answer.Text)
	return nil
}

func consoleCommand() *cli.Command {
	var (
		cfg         config
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "Console input history file",
			Value:       filepath.Join(os.TempDir(), "quakead_history"),
			Sources:     cli.EnvVars("QUAKEAD_HISTORY_FILE"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, bridgeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, campaignFlags(&cfg)...)

	return &cli.Command{
		Name:  "console",
		Usage: "Interactive campaign console",
		Flags: flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)

			withGemini := cfg.geminiAPIKey != "" || cfg.geminiProject != ""
			if !withGemini {
				logger.Warn("gemini is not configured, email and ask are disabled")
			}

			uc, closeStore, err := cfg.newCampaign(ctx, withGemini)
			if err != nil {
				return err
			}
			defer closeStore()

			b, closeBridge, err := cfg.openBridge(ctx, c)
			if err != nil {
				return err
			}
			defer closeBridge()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "quakead> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			con := &console{
				w:       rl.Stdout(),
				uc:      uc,
				session: campaign.NewSession(b),
				busy: func(msg string) func() {
					sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(rl.Stderr()))
					sp.Suffix = " " + msg
					sp.Start()
					return sp.Stop
				},
			}

			if withGemini {
				gemini, err := cfg.newGemini(ctx)
				if err != nil {
					return err
				}
				bridgeTools, err := tool.NewBridgeTools(ctx, b)
				if err != nil {
					return err
				}
				con.ask = ask.New(gemini, tool.New(bridgeTools))
			}

			fmt.Fprintf(con.w, "Connected through the %s bridge. Type help for commands.\n", b.Transport())

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						if line == "" {
							break
						}
						continue
					}
					if errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				if err := con.execute(ctx, line); err != nil {
					if errors.Is(err, errQuit) {
						break
					}
					fmt.Fprintf(con.w, "Error: %s\n", err)
					logger.Debug("console command failed", "line", line, "error", err)
				}
			}

			con.session.Reset()
			return nil
		}),
	}
}
