package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/btrace-go/btrace"
)

const shellPrefix = "btrace> "

// Session is an interactive REPL over one already-loaded State,
// adapted from the teacher's cmd/debug/shell.go DebugSession: a
// liner.State for prompt/history/tab-completion driving a small
// cobra command tree, rather than a raw line parser.
type Session struct {
	state *btrace.State
	liner *liner.State
	root  *cobra.Command
	last  string
}

func newSession(state *btrace.State) *Session {
	s := &Session{state: state, liner: liner.NewLiner()}

	s.root = &cobra.Command{Use: "btrace-shell"}
	s.root.AddCommand(&cobra.Command{
		Use:   "resolve <pc>",
		Short: "resolve one hex address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := parsePC(args[0])
			if err != nil {
				return err
			}
			s.state.PCPrint(pc, os.Stdout)
			return nil
		},
	})
	s.root.AddCommand(&cobra.Command{
		Use:   "quit",
		Short: "exit the shell",
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(0)
		},
	})

	s.liner.SetCompleter(s.completer)
	return s
}

func (s *Session) completer(line string) []string {
	var out []string
	for _, c := range s.root.Commands() {
		name := strings.Split(c.Use, " ")[0]
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	return out
}

// Run drives the prompt loop until the user quits or sends EOF
// (spec §2 "Interactive shell").
func (s *Session) Run() {
	defer s.liner.Close()
	for {
		txt, err := s.liner.Prompt(shellPrefix)
		if err != nil {
			return
		}
		txt = strings.TrimSpace(txt)
		if txt == "" {
			txt = s.last
		} else {
			s.last = txt
			s.liner.AppendHistory(txt)
		}
		if txt == "" {
			continue
		}

		s.root.SetArgs(strings.Fields(txt))
		if err := s.root.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

var shellCmd = &cobra.Command{
	Use:   "shell <binary>",
	Short: "start an interactive address-resolution shell",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := btrace.CreateState(args[0], false, func(msg string, errno btrace.Errno) {
			fmt.Fprintf(os.Stderr, "btrace: %s (errno=%d)\n", msg, errno)
		})
		if err != nil {
			return err
		}
		newSession(state).Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
