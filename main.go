package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/config"
	"github.com/picojs/picojs/inspect"
	"github.com/picojs/picojs/lit"
	"github.com/picojs/picojs/parser"
	"github.com/picojs/picojs/snapshot"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	var (
		showVersion  = flag.Bool("version", false, "Show version information")
		showHelp     = flag.Bool("help", false, "Show help information")
		strictMode   = flag.Bool("strict", false, "Compile as strict mode code")
		dumpCode     = flag.Bool("dump", false, "Dump the compiled byte code")
		showStats    = flag.Bool("stats", false, "Print compilation statistics")
		verifyCode   = flag.Bool("verify", false, "Verify the compiled byte code")
		inspectMode  = flag.Bool("inspect", false, "Browse the compiled code in a TUI")
		snapshotFile = flag.String("snapshot", "", "Write a snapshot image to this file")
		loadSnapshot = flag.Bool("load-snapshot", false, "Treat the input file as a snapshot image")
		configFile   = flag.String("config", "", "Configuration file (default: platform config path)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("picojs %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		fmt.Fprintln(os.Stderr, "Usage: picojs [options] <script.js>")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	filename := flag.Arg(0)
	input, err := os.ReadFile(filename) // #nosec G304 -- user-supplied input file
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", filename, err)
		os.Exit(2)
	}

	store := lit.NewStore()
	defer store.Finalize()

	var code *bytecode.CompiledCode

	if *loadSnapshot {
		code, err = snapshot.Load(input, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot load snapshot: %v\n", err)
			os.Exit(1)
		}
		if cfg.Snapshot.Verify {
			if err := bytecode.Verify(code); err != nil {
				fmt.Fprintf(os.Stderr, "Error: snapshot verification failed: %v\n", err)
				os.Exit(1)
			}
		}
	} else {
		limits := parserLimits(cfg)
		opts := &parser.Options{Strict: *strictMode, Limits: &limits}

		var parseErr *parser.Error
		code, parseErr = parser.ParseScript(store, input, opts)
		if parseErr != nil {
			fmt.Fprintln(os.Stderr, parseErr.Error())
			os.Exit(1)
		}
	}

	if *verifyCode {
		if err := bytecode.Verify(code); err != nil {
			fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Byte code verified")
	}

	if *showStats {
		printStats(code, store)
	}

	if *dumpCode {
		fmt.Print(bytecode.Disassemble(code, store))
	}

	if *snapshotFile != "" {
		opts := &snapshot.Options{CompressionLevel: cfg.Snapshot.CompressionLevel}
		image, err := snapshot.Save(code, store, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot write snapshot: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*snapshotFile, image, 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot write %s: %v\n", *snapshotFile, err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot written to %s (%s)\n", *snapshotFile, humanize.Bytes(uint64(len(image))))
	}

	if *inspectMode {
		if err := inspect.NewInspector(code, store).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig loads the explicit config file, or the platform default.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// parserLimits converts the configured limits for the parser.
func parserLimits(cfg *config.Config) parser.Limits {
	return parser.Limits{
		MaxLiterals:     cfg.Limits.MaxLiterals,
		MaxRegisters:    cfg.Limits.MaxRegisters,
		MaxStackDepth:   cfg.Limits.MaxStackDepth,
		MaxCodeSize:     cfg.Limits.MaxCodeSize,
		MaxIdentLength:  cfg.Limits.MaxIdentLength,
		MaxStringLength: cfg.Limits.MaxStringLength,
	}
}

// countFunctions walks the compiled tree.
func countFunctions(code *bytecode.CompiledCode) int {
	count := 1
	for _, fn := range code.Functions {
		count += countFunctions(fn)
	}
	return count
}

// printStats reports sizes of the compilation result.
func printStats(code *bytecode.CompiledCode, store *lit.Store) {
	fmt.Printf("Functions:       %d\n", countFunctions(code))
	fmt.Printf("Compiled size:   %s\n", humanize.Bytes(uint64(code.CodeSize())))
	fmt.Printf("Byte code:       %s\n", humanize.Bytes(uint64(len(code.Code))))
	fmt.Printf("Literal pool:    %d entries\n", code.LiteralEnd)
	fmt.Printf("Stack limit:     %d\n", code.StackLimit)
	fmt.Printf("Stored literals: %d records\n", store.Count())
}

func printHelp() {
	fmt.Println("picojs - compact ECMAScript 5.1 byte-code compiler")
	fmt.Println()
	fmt.Println("Usage: picojs [options] <script.js>")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Exit status is 0 when compilation succeeds and non-zero on a")
	fmt.Println("parse error, which is printed with its line and column.")
}
