package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/archivist/internal/dataset"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the archive as a dataset directory",
		Long: `Write every archived user and post to users.yaml and posts.yaml in dir.

The result can be served with "archivist mirror" to rebuild an archive
without the original origin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			dump, err := a.store.ReadAll(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read archive", err)
			}

			ds := &dataset.Dataset{Users: dump.Users, Posts: dump.Posts}
			if err := ds.Save(args[0]); err != nil {
				return WrapExitError(ExitFailure, "failed to write dataset", err)
			}

			return newFormatter(opts, cmd.OutOrStdout()).Success(exportResult{
				Dir:   args[0],
				Users: len(ds.Users),
				Posts: len(ds.Posts),
			})
		},
	}
}

type exportResult struct {
	Dir   string `json:"dir"`
	Users int    `json:"users"`
	Posts int    `json:"posts"`
}

func (r exportResult) String() string {
	return fmt.Sprintf("exported %d users and %d posts to %s", r.Users, r.Posts, r.Dir)
}
