// Command threads-insights exchanges Threads API tokens and exports insights
// and threads as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	threads "github.com/anatolykoptev/go-threads"
	"github.com/anatolykoptev/go-threads/internal/config"
	"github.com/anatolykoptev/go-threads/table"
)

const usage = `usage: threads-insights <command> [flags]

commands:
  auth-url   print the authorization URL to open in a browser
  exchange   exchange a redirect URL or code for a long-lived token and save it
  insights   export account insights as CSV
  threads    export threads as CSV
  report     export threads joined with their media insights as CSV`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	client, err := threads.NewClient(threads.ClientConfig{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RedirectURI:    cfg.RedirectURI,
		APIVersion:     cfg.APIVersion,
		Timeout:        cfg.RequestTimeout(),
		Proxy:          cfg.Proxy,
		BrowserProfile: cfg.BrowserProfile,
	})
	if err != nil {
		return err
	}

	switch cmd {
	case "auth-url":
		return runAuthURL(client, args)
	case "exchange":
		return runExchange(ctx, client, cfg, args)
	case "insights":
		return runInsights(ctx, client, cfg, args)
	case "threads":
		return runThreads(ctx, client, cfg, args)
	case "report":
		return runReport(ctx, client, cfg, args)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func runAuthURL(client *threads.Client, args []string) error {
	fs := flag.NewFlagSet("auth-url", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	state := fs.String("state", "", "opaque state echoed back on redirect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Println(client.AuthCodeURL(*state))
	return nil
}

func runExchange(ctx context.Context, client *threads.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("exchange", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	redirect := fs.String("redirect", "", "full URL the browser was redirected to")
	code := fs.String("code", "", "authorization code (instead of -redirect)")
	name := fs.String("name", "default", "name to save the token under")
	shortOnly := fs.Bool("short", false, "save the short-lived token without upgrading it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		tok *threads.Token
		err error
	)
	switch {
	case *redirect != "":
		tok, err = client.ExchangeRedirect(ctx, *redirect)
	case *code != "":
		tok, err = client.ExchangeCode(ctx, *code)
	default:
		return errors.New("one of -redirect or -code is required")
	}
	if err != nil {
		return err
	}
	if !*shortOnly {
		if tok, err = client.ExchangeLongLived(ctx, tok); err != nil {
			return err
		}
	}
	if err := threads.SaveToken(cfg.TokenDir, *name, tok); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved %s token %q", tok.Kind, *name)
	if !tok.ExpiresAt.IsZero() {
		fmt.Fprintf(os.Stderr, " (expires %s)", tok.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// common holds flags shared by the export commands.
type common struct {
	name   *string
	frame  *string
	output *string
	strict *bool
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		name:   fs.String("name", "default", "saved token name"),
		frame:  fs.String("frame", "", "time frame: "+strings.Join(frameNames(), ", ")),
		output: fs.String("o", "", "output file (default stdout)"),
		strict: fs.Bool("strict", false, "fail on the first malformed record"),
	}
}

func (c common) token(cfg *config.Config, now time.Time) (string, error) {
	tok, err := threads.LoadToken(cfg.TokenDir, *c.name)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", fmt.Errorf("no saved token %q; run exchange first", *c.name)
	}
	if tok.Expired(now) {
		return "", fmt.Errorf("token %q expired at %s", *c.name, tok.ExpiresAt.Format(time.RFC3339))
	}
	return tok.Value, nil
}

func (c common) window(now time.Time) (threads.TimeWindow, error) {
	if *c.frame == "" {
		return threads.TimeWindow{}, nil
	}
	f, ok := threads.TimeFrames(now)[*c.frame]
	if !ok {
		return threads.TimeWindow{}, fmt.Errorf("unknown frame %q (want one of %s)", *c.frame, strings.Join(frameNames(), ", "))
	}
	return f.Window(), nil
}

func (c common) write(t *table.Table) error {
	if *c.output == "" {
		return t.WriteCSV(os.Stdout)
	}
	return writeFile(*c.output, t)
}

// writeFile writes t as CSV to path and reports a failed close.
func writeFile(path string, t *table.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return t.WriteCSV(f)
}

// writePartial writes t and then reports incomplete, so that rows fetched
// before a failure are kept and the exit status still shows the failure.
func (c common) writePartial(t *table.Table, incomplete error) error {
	if err := c.write(t); err != nil {
		return err
	}
	return incomplete
}

func runInsights(ctx context.Context, client *threads.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	c := commonFlags(fs)
	metrics := fs.String("metrics", "views,likes,replies,reposts,quotes", "comma-separated metrics")
	breakdown := fs.String("breakdown", "", "follower_demographics breakdown")
	pages := fs.Int("pages", 1, "reporting windows to walk, following the next link")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := time.Now()
	tok, err := c.token(cfg, now)
	if err != nil {
		return err
	}
	w, err := c.window(now)
	if err != nil {
		return err
	}
	it, err := client.UserInsights(ctx, tok, threads.InsightsQuery{
		Metrics:   splitList(*metrics),
		Since:     w.Since,
		Until:     w.Until,
		Breakdown: *breakdown,
		PageLimit: *pages,
		Options:   threads.NormalizeOptions{Strict: *c.strict},
	})
	if err != nil {
		return err
	}
	return c.writePartial(it.Table, it.Err)
}

func runThreads(ctx context.Context, client *threads.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("threads", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	c := commonFlags(fs)
	fields := fs.String("fields", "id,text,timestamp,permalink,media_type", "comma-separated fields")
	limit := fs.Int("limit", 0, "page size")
	pages := fs.Int("pages", 0, "maximum pages (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := time.Now()
	tok, err := c.token(cfg, now)
	if err != nil {
		return err
	}
	w, err := c.window(now)
	if err != nil {
		return err
	}
	tt, err := client.FetchThreads(ctx, tok, threads.ThreadsQuery{
		Fields:    splitList(*fields),
		Since:     w.Since,
		Until:     w.Until,
		Limit:     *limit,
		PageLimit: *pages,
		Options:   threads.NormalizeOptions{Strict: *c.strict},
	}, w)
	if err != nil {
		return err
	}
	if len(tt.Excluded) > 0 {
		slog.Info("array fields left out", slog.String("paths", strings.Join(tt.Excluded, ",")))
	}
	return c.writePartial(tt.Table, tt.Err)
}

func runReport(ctx context.Context, client *threads.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	c := commonFlags(fs)
	clientName := fs.String("client", "", "client name stamped on every row")
	fields := fs.String("fields", "id,text,timestamp,permalink,media_type", "comma-separated thread fields")
	metrics := fs.String("metrics", "views,likes,replies,reposts,quotes", "comma-separated media metrics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := time.Now()
	tok, err := c.token(cfg, now)
	if err != nil {
		return err
	}
	w, err := c.window(now)
	if err != nil {
		return err
	}
	rep, err := client.FetchThreadsWithInsights(ctx, tok, threads.ReportQuery{
		Fields:     splitList(*fields),
		Metrics:    splitList(*metrics),
		ClientName: *clientName,
		Since:      w.Since,
		Until:      w.Until,
	})
	if err != nil {
		return err
	}
	if len(rep.MediaErrors) > 0 {
		ids := make([]string, 0, len(rep.MediaErrors))
		for id := range rep.MediaErrors {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		slog.Warn("insights missing for some threads", slog.String("run_id", rep.RunID), slog.String("media_ids", strings.Join(ids, ",")))
	}
	return c.writePartial(rep.Table, rep.Threads.Err)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func frameNames() []string {
	names := make([]string, 0, 4)
	for name := range threads.TimeFrames(time.Time{}) {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
