package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/audit"
	"github.com/withObsrvr/tainit-daily/internal/config"
	"github.com/withObsrvr/tainit-daily/internal/logging"
	"github.com/withObsrvr/tainit-daily/internal/metrics"
	"github.com/withObsrvr/tainit-daily/internal/processor"
	"github.com/withObsrvr/tainit-daily/internal/store"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

const usage = `usage: tainit-daily <command> [flags]

commands:
  run           process a file or directory of TA exports
  purge         delete rows from the store (admin credentials)
  verify-audit  check the audit hash chain
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "purge":
		err = purgeCmd(os.Args[2:])
	case "verify-audit":
		err = verifyCmd(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("[main] %v", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Printf("[shutdown] received signal: %v, stopping after the current file", sig)
		cancel()
	}()
	return ctx, cancel
}

// setup loads configuration and builds the processor with its
// collaborators.
func setup(configPath string, progress bool) (*config.Config, *processor.Processor, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var sink func(logging.Line)
	if progress {
		sink = func(l logging.Line) { fmt.Fprintln(os.Stderr, l.String()) }
	}
	logging.Setup(cfg.Logging, sink)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("tainit")
		go func() {
			log.Printf("[main] metrics listening on %s", cfg.Metrics.Address)
			if err := metrics.StartServer(cfg.Metrics.Address, m); err != nil {
				log.Printf("[main] metrics server stopped: %v", err)
			}
		}()
	}

	emitter := audit.NewEmitter(cfg.Audit)
	p, err := processor.New(cfg, processor.Options{
		Logger:  logging.Component("processor"),
		Metrics: m,
		Emitter: emitter,
	})
	if err != nil {
		emitter.Close()
		return nil, nil, nil, err
	}
	return cfg, p, func() { emitter.Close() }, nil
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "CSV file, directory of CSV files, or s3://, gs:// prefix")
	persist := fs.Bool("persist", false, "upsert records into the store (default is a test run)")
	configPath := fs.String("config", os.Getenv("TAINIT_CONFIG"), "path to YAML config")
	progress := fs.Bool("progress", false, "print [INFO]/[WARNING]/[ERROR] progress lines to stderr")
	fs.Parse(args)

	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		return errors.New("run: -input is required")
	}

	log.Printf("[main] TA daily processor %s (%s)", processor.Version, processor.GitSHA)
	_, p, closeFn, err := setup(*configPath, *progress)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Run(ctx, *input, *persist)
	if err != nil {
		if errors.Is(err, processor.ErrCancelled) {
			log.Printf("[main] run cancelled")
		}
		return fmt.Errorf("run failed: %w", err)
	}

	log.Printf("[main] success: %d records from %d/%d files, output %s", res.Records, res.FilesOK, res.FilesTotal, res.OutputPath)
	return nil
}

func purgeCmd(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	all := fs.Bool("all", false, "delete every row")
	from := fs.String("from", "", "first DateId to delete (YYYY-MM-DD), with -to")
	to := fs.String("to", "", "last DateId to delete (YYYY-MM-DD), inclusive")
	site := fs.String("site", "", "delete rows with this SiteId")
	configPath := fs.String("config", os.Getenv("TAINIT_CONFIG"), "path to YAML config")
	fs.Parse(args)

	req, err := purgeRequest(*all, *from, *to, *site)
	if err != nil {
		return err
	}

	_, p, closeFn, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	n, err := p.Purge(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("[main] purge %s deleted %d rows", req, n)
	return nil
}

// purgeRequest builds the request for exactly one selected mode.
func purgeRequest(all bool, from, to, site string) (store.PurgeRequest, error) {
	modes := 0
	if all {
		modes++
	}
	if from != "" || to != "" {
		modes++
	}
	if site != "" {
		modes++
	}
	if modes != 1 {
		return store.PurgeRequest{}, fmt.Errorf("%w: choose exactly one of -all, -from/-to, -site", store.ErrInvalidPurge)
	}

	switch {
	case all:
		return store.PurgeEverything(), nil
	case site != "":
		return store.PurgeBySite(site), nil
	}

	start, err := tables.ParseDateID(from)
	if err != nil {
		return store.PurgeRequest{}, fmt.Errorf("%w: -from: %w", store.ErrInvalidPurge, err)
	}
	end, err := tables.ParseDateID(to)
	if err != nil {
		return store.PurgeRequest{}, fmt.Errorf("%w: -to: %w", store.ErrInvalidPurge, err)
	}
	req := store.PurgeBetween(start, end)
	return req, req.Validate()
}

func verifyCmd(args []string) error {
	fs := flag.NewFlagSet("verify-audit", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("TAINIT_CONFIG"), "path to YAML config")
	dir := fs.String("dir", "", "audit directory (defaults to audit.dir from config)")
	fs.Parse(args)

	if *dir == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		*dir = cfg.Audit.Dir
	}

	reports, err := audit.VerifyChain(*dir)
	for _, r := range reports {
		log.Printf("[main] chain %s ok: %d events, head %s", r.Key, r.Events, r.Head)
	}
	if err != nil {
		return err
	}
	log.Printf("[main] audit log %s verified", *dir)
	return nil
}
