package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"fixlang/pkg/driver"
	"fixlang/pkg/jit"
)

var (
	evalExpr   = flag.String("e", "", "Evaluate expression from command line")
	outputFile = flag.String("o", "", "Also write the rendered LLVM IR to this file")
	verbose    = flag.Bool("v", false, "Verbose: trace each compile stage")
	sanitize   = flag.Bool("sanitize", false, "Enable sanitizer mode (leak check at exit)")
	optLevel   = flag.String("O", "default", "Backend optimization level: none, less, default, aggressive")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fixlang - JIT compiler for a lazy functional core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [file]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -e 'add 1 2'               # compile and run an expression\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s program.fix                # compile and run a file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -v -sanitize program.fix   # verbose trace, leak-checked\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -o out.ll -e 'add 1 2'     # also emit rendered IR\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -O aggressive program.fix  # optimize the JIT-compiled binary\n", os.Args[0])
	}
	flag.Parse()

	var input string
	switch {
	case *evalExpr != "":
		input = *evalExpr
	case flag.NArg() > 0:
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			color.Red("Error reading file: %v", err)
			os.Exit(1)
		}
		input = string(data)
	default:
		if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
			data, err := io.ReadAll(os.Stdin)
			if err == nil && strings.TrimSpace(string(data)) != "" {
				input = string(data)
			}
		}
	}

	if strings.TrimSpace(input) == "" {
		runREPL()
		return
	}

	runOne(input)
}

func trace(stage string) {
	if !*verbose {
		return
	}
	color.Cyan("  [%s]", stage)
}

func runOne(input string) {
	if *outputFile != "" {
		irText, stats, err := driver.CompileWithTrace(input, *sanitize, trace)
		if err != nil {
			color.Red("Compile error: %v", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outputFile, []byte(irText), 0644); err != nil {
			color.Red("Error writing IR: %v", err)
			os.Exit(1)
		}
		if *verbose {
			color.Green("IR written to %s (retains=%d releases=%d)", *outputFile, stats.RetainsEmitted, stats.ReleasesEmitted)
		}
	}

	result, stats, err := driver.RunSourceWithTrace(input, *sanitize, jit.ParseOptLevel(*optLevel), trace)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	if *verbose {
		color.Green("retains=%d releases=%d", stats.RetainsEmitted, stats.ReleasesEmitted)
	}
	fmt.Println(result)
}

func runREPL() {
	color.Cyan("fixlang REPL")
	fmt.Println("Type an expression, or 'quit' to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("fix> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		result, stats, err := driver.RunSourceWithTrace(line, *sanitize, jit.ParseOptLevel(*optLevel), trace)
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}
		if *verbose {
			color.Cyan("retains=%d releases=%d", stats.RetainsEmitted, stats.ReleasesEmitted)
		}
		fmt.Println(result)
	}
}
