package main

import (
	"debug/elf"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/arch/x86/x86asm"

	"github.com/btrace-go/btrace"
)

var disasm bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <binary> <pc> [pc...]",
	Short: "resolve one or more hex addresses against a binary",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		binary := args[0]

		var onErr btrace.ErrorCallback = func(msg string, errno btrace.Errno) {
			fmt.Fprintf(os.Stderr, "btrace: %s (errno=%d)\n", msg, errno)
		}

		state, err := btrace.CreateState(binary, false, onErr)
		if err != nil {
			return err
		}

		for _, arg := range args[1:] {
			pc, err := parsePC(arg)
			if err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
			state.PCPrint(pc, os.Stdout)
			if disasm {
				annotate(binary, pc)
			}
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&disasm, "disasm", false, "also print the x86-64 instruction at each resolved address")
	rootCmd.AddCommand(resolveCmd)
}

func parsePC(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}

// annotate decodes the single x86-64 instruction at pc, reading bytes
// straight out of the on-disk binary's containing section (SPEC_FULL
// §2 "Disassembly-adjacent arch support"; grounded on the teacher's
// symbol/binary.go getSingleMemInst, adapted from a live-process
// PtracePeekData read to a static file read since this CLI has no
// attached tracee).
func annotate(binary string, pc uint64) {
	f, err := os.Open(binary)
	if err != nil {
		return
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return
	}
	for _, sec := range ef.Sections {
		if sec.Addr == 0 || pc < sec.Addr || pc >= sec.Addr+sec.Size {
			continue
		}
		buf := make([]byte, 16)
		n, _ := sec.ReadAt(buf, int64(pc-sec.Addr))
		if n == 0 {
			return
		}
		inst, err := x86asm.Decode(buf[:n], 64)
		if err != nil {
			fmt.Printf("  %#x: <bad instruction: %v>\n", pc, err)
			return
		}
		fmt.Printf("  %#x: %s\n", pc, inst)
		return
	}
}
