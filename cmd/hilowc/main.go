// hilowc is the HiLow compiler driver: it lowers HiLow source to C and
// hands the result to the system C compiler. Subcommands expose the
// intermediate stages (tokens, ast, c) and an interactive repl.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/hilow-lang/hilow/pkg/compiler"
)

var (
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render("error:")+" "+err.Error())
	os.Exit(1)
}

func readSource(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		fail(err)
	}
	return string(data)
}

func main() {
	var (
		output      string
		optLevel    int
		keepC       bool
		printTokens bool
		printAST    bool
	)

	root := &cobra.Command{
		Use:   "hilowc <file.hl>",
		Short: "The HiLow programming language compiler",
		Long: "hilowc compiles HiLow source files to native executables.\n" +
			"HiLow is lowered to C11 and built with the system C compiler.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			src := readSource(args[0])

			if printTokens {
				dumpTokens(src)
			}
			if printAST {
				dumpAST(src)
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0]))
			}

			opts := compiler.BuildOptions{Optimization: optLevel, KeepC: keepC}
			if err := compiler.Build(cmd.Context(), src, out, opts); err != nil {
				fail(err)
			}
			fmt.Println(okStyle.Render("Compilation successful: " + out))
		},
	}
	root.Flags().StringVarP(&output, "output", "o", "", "output executable path (default: input without extension)")
	root.Flags().IntVarP(&optLevel, "opt", "O", 0, "optimization level (0-3)")
	root.Flags().BoolVar(&keepC, "emit-c", false, "keep the intermediate .c file")
	root.Flags().BoolVar(&printTokens, "print-tokens", false, "dump the token stream before building")
	root.Flags().BoolVar(&printAST, "print-ast", false, "dump the syntax tree before building")

	root.AddCommand(tokensCmd(), astCmd(), cCmd(), replCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func dumpTokens(src string) {
	tokens, err := compiler.Tokenize(src)
	if err != nil {
		fail(err)
	}
	fmt.Println(stageStyle.Render("=== TOKENS ==="))
	for _, tok := range tokens {
		fmt.Println(tok)
	}
}

func dumpAST(src string) {
	tokens, err := compiler.Tokenize(src)
	if err != nil {
		fail(err)
	}
	program, err := compiler.Parse(tokens)
	if err != nil {
		fail(err)
	}
	fmt.Println(stageStyle.Render("=== AST ==="))
	for _, stmt := range program.Statements {
		fmt.Println(stmt)
	}
}

func tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file.hl>",
		Short: "Print the token stream for a source file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dumpTokens(readSource(args[0]))
		},
	}
}

func astCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast <file.hl>",
		Short: "Print the parsed syntax tree for a source file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dumpAST(readSource(args[0]))
		},
	}
}

func cCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "c <file.hl>",
		Short: "Print the generated C without building",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cCode, err := compiler.Compile(readSource(args[0]))
			if err != nil {
				fail(err)
			}
			fmt.Print(cCode)
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive compiler explorer",
		Long: "Reads HiLow snippets and shows a chosen compiler stage.\n" +
			"Prefix a line with :tokens, :ast, or :c to pick the stage; plain\n" +
			"lines show generated C. :quit exits.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runRepl()
		},
	}
}

func runRepl() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println(stageStyle.Render("HiLow repl") + " — :tokens / :ast / :c / :quit")
	for {
		input, err := line.Prompt("hilow> ")
		if err != nil {
			// liner reports Ctrl-C and Ctrl-D as errors; both end the session
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		stage := "c"
		code := input
		if strings.HasPrefix(input, ":") {
			parts := strings.SplitN(input, " ", 2)
			stage = strings.TrimPrefix(parts[0], ":")
			if stage == "quit" || stage == "q" {
				return
			}
			if len(parts) < 2 {
				fmt.Println(errStyle.Render("error:") + " :" + stage + " needs a snippet")
				continue
			}
			code = parts[1]
		}

		if err := replStage(stage, code); err != nil {
			fmt.Println(errStyle.Render("error:") + " " + err.Error())
		}
	}
}

func replStage(stage, code string) error {
	switch stage {
	case "tokens":
		tokens, err := compiler.Tokenize(code)
		if err != nil {
			return err
		}
		for _, tok := range tokens {
			fmt.Println(tok)
		}
		return nil
	case "ast":
		tokens, err := compiler.Tokenize(wrapSnippet(code))
		if err != nil {
			return err
		}
		program, err := compiler.Parse(tokens)
		if err != nil {
			return err
		}
		for _, stmt := range program.Statements {
			fmt.Println(stmt)
		}
		return nil
	case "c":
		cCode, err := compiler.Compile(wrapSnippet(code))
		if err != nil {
			return err
		}
		fmt.Print(cCode)
		return nil
	default:
		return fmt.Errorf("unknown stage %q (want tokens, ast, or c)", stage)
	}
}

// wrapSnippet makes a bare statement compilable by wrapping it in a main
// function. Lines that already declare something top-level pass through.
func wrapSnippet(code string) string {
	trimmed := strings.TrimSpace(code)
	for _, kw := range []string{"function ", "export ", "import "} {
		if strings.HasPrefix(trimmed, kw) {
			return code
		}
	}
	return "function main(): i32 {\n    " + code + "\n    return 0;\n}\n"
}
