package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
	"github.com/TheEntropyCollective/huffpool/pkg/core/compressor"
	"github.com/TheEntropyCollective/huffpool/pkg/infrastructure/config"
	"github.com/TheEntropyCollective/huffpool/pkg/server"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/cache"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/jobs"
	"github.com/TheEntropyCollective/huffpool/pkg/watch"
	"golang.org/x/term"
)

type mode int

const (
	modeFile mode = iota
	modeServe
	modeWatch
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		input      = flag.String("in", "", "File to compress")
		output     = flag.String("out", "", "Output path (default: <in><suffix>)")
		workers    = flag.Int("workers", 0, "Worker count (overrides config)")
		format     = flag.String("format", "", "Output format: raw or container (overrides config)")
		serve      = flag.Bool("serve", false, "Run the HTTP API")
		watchDir   = flag.String("watch", "", "Directory to watch and compress into")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		showCodes  = flag.Bool("codes", false, "Print the code table after compressing -in")
	)

	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Apply command-line overrides
	if *workers != 0 {
		cfg.Workers.Count = *workers
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *watchDir != "" {
		cfg.Watch.Dir = *watchDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	m, err := selectMode(*input, *serve, *watchDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if err := logging.InitFromConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, m, *input, *output, *showCodes); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig loads configuration from file or uses defaults
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		// Try default config path
		defaultPath, err := config.GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		}
	}

	return config.LoadConfig(configPath)
}

func selectMode(input string, serve bool, watchDir string) (mode, error) {
	selected := 0
	m := modeFile
	if input != "" {
		selected++
	}
	if serve {
		selected++
		m = modeServe
	}
	if watchDir != "" {
		selected++
		m = modeWatch
	}
	if selected != 1 {
		return 0, errors.New("exactly one of -in, -serve or -watch is required")
	}
	return m, nil
}

func run(ctx context.Context, cfg *config.Config, m mode, input, output string, showCodes bool) error {
	logger := logging.GetGlobalLogger()

	format, err := compressor.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	comp := compressor.New(compressor.Config{
		Workers:         cfg.Workers.Count,
		QueueCapacity:   cfg.Workers.QueueCapacity,
		ShutdownTimeout: cfg.ShutdownTimeout(),
	}, compressor.WithLogger(logger.WithComponent("compressor")))
	defer comp.Close()

	if m == modeFile {
		if output == "" {
			output = input + cfg.Watch.Suffix
		}
		result, err := comp.CompressFile(ctx, input, output, format)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, result, format, output, term.IsTerminal(int(os.Stdout.Fd())))
		if showCodes {
			printCodes(os.Stdout, result)
		}
		return nil
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	if m == modeWatch {
		w, err := watch.New(watch.Config{
			Dir:       cfg.Watch.Dir,
			OutputDir: cfg.Watch.OutputDir,
			Suffix:    cfg.Watch.Suffix,
			Format:    format,
			Debounce:  cfg.Debounce(),
		}, comp, store, logger.WithComponent("watch"))
		if err != nil {
			return err
		}
		return w.Run(ctx)
	}

	var resultCache *cache.ResultCache
	if cfg.Server.CacheEntries > 0 {
		resultCache = cache.NewResultCache(cfg.Server.CacheEntries)
	}

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		MaxBodyBytes:  cfg.MaxBodyBytes(),
		DefaultFormat: format,
	}, comp, store, resultCache, logger.WithComponent("server"))

	fmt.Printf("huffpool API running at http://%s\n", cfg.Server.Addr)
	return srv.ListenAndServe(ctx)
}

// openStore builds the job ledger selected by the store config.
func openStore(ctx context.Context, cfg config.StoreConfig) (jobs.Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return jobs.NewMemoryStore(cfg.MemoryLimit), nil
	case "postgres":
		store, err := jobs.NewPostgresStore(ctx, &jobs.PostgresConfig{
			ConnectionString: cfg.DSN,
			MaxConnections:   int32(cfg.MaxConnections),
			ConnectTimeout:   30 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if err := store.MigrateToLatest(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

// printSummary prints the job outcome. On a terminal it adds a per-stage
// timing table.
func printSummary(w io.Writer, result *compressor.Result, format compressor.Format, output string, interactive bool) {
	outputSize := result.OutputSize(format)
	ratio := 0.0
	if result.InputLength > 0 {
		ratio = float64(outputSize) / float64(result.InputLength)
	}

	fmt.Fprintf(w, "%s: %d -> %d bytes (%.1f%%, %d bits, %d symbols, %d workers)\n",
		output, result.InputLength, outputSize, ratio*100, result.Stream.Bits, result.Codes.Symbols(), result.Workers)

	if !interactive {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tDURATION")
	var total time.Duration
	for _, stage := range compressor.Stages {
		d, ok := result.Stages[stage]
		if !ok {
			continue
		}
		total += d
		fmt.Fprintf(tw, "%s\t%s\n", stage, d.Round(time.Microsecond))
	}
	fmt.Fprintf(tw, "total\t%s\n", total.Round(time.Microsecond))
	tw.Flush()
}

// printCodes prints one line per coded symbol: symbol, frequency, code.
func printCodes(w io.Writer, result *compressor.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tFREQ\tCODE")
	for symbol := 0; symbol < 256; symbol++ {
		code, ok := result.Codes.Lookup(byte(symbol))
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", formatSymbol(byte(symbol)), result.Frequencies[symbol], code)
	}
	tw.Flush()
}

func formatSymbol(b byte) string {
	if b > ' ' && b < 0x7f {
		return fmt.Sprintf("'%c'", b)
	}
	return fmt.Sprintf("0x%02x", b)
}
