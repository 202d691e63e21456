package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/archivist/internal/engine"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <ids-file>",
		Short: "Archive a list of posts",
		Long: `Archive every post listed in a file, together with the users and posts
they reference.

The file holds one post ID per line. Blank lines and text after # are
ignored. Use - to read from standard input. Posts are resolved
concurrently (seed.concurrency in the config file). The command exits
non-zero if any post failed for a reason other than being absent upstream.

Example:
  archivist seed ids.txt --db ./archive.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readSeedFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.engine.Seed(cmd.Context(), ids)
			if err != nil {
				return WrapExitError(ExitFailure, "seed interrupted", err)
			}
			if err := newFormatter(opts, cmd.OutOrStdout()).Success(seedReport(report)); err != nil {
				return err
			}
			if report.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d posts failed", report.Failed, len(ids)))
			}
			return nil
		},
	}
}

func readSeedFile(path string, stdin io.Reader) ([]uint64, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open seed file", err)
		}
		defer f.Close()
		r = f
	}

	ids, err := parseSeedList(r)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid seed file", err)
	}
	return ids, nil
}

// parseSeedList reads one ID per line, skipping blanks and # comments.
func parseSeedList(r io.Reader) ([]uint64, error) {
	var ids []uint64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text, _, _ := strings.Cut(sc.Text(), "#")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		id, err := strconv.ParseUint(text, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("line %d: invalid post id %q", line, text)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

type seedReport engine.SeedReport

func (r seedReport) String() string {
	var b strings.Builder
	for _, res := range r.Results {
		fmt.Fprintf(&b, "%-20d %s", res.ID, res.Outcome)
		if res.Gaps > 0 {
			fmt.Fprintf(&b, " (%d gaps)", res.Gaps)
		}
		if res.Error != "" {
			fmt.Fprintf(&b, ": %s", res.Error)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "archived %d, already stored %d, missing %d, failed %d, gaps %d",
		r.Archived, r.AlreadyStored, r.Missing, r.Failed, r.Gaps)
	return b.String()
}
