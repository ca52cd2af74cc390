package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"
)

// confirmOverwrite asks once per existing output whether to replace it.
// Without a terminal nothing is replaced.
func confirmOverwrite(std streams) func(dest string) bool {
	if !std.interactive || std.in == nil {
		return func(dest string) bool {
			slog.Warn("instrumented script exists; use --force to replace it", "path", dest)
			return false
		}
	}

	reader := bufio.NewReader(std.in)
	return func(dest string) bool {
		fmt.Fprintf(std.out, "%s already exists. Overwrite? [y/N]: ", dest)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			fmt.Fprintln(std.out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}
