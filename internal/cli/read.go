package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <handle>",
		Short: "Show a user's posts, newest first",
		Long: `Show every archived post by a user, newest first.

The archive is first brought up to date: an empty timeline is fetched in
full, otherwise only posts newer than the newest archived one are fetched.

Examples:
  archivist timeline alice
  archivist timeline @alice --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			handle := strings.TrimPrefix(args[0], "@")
			entries, err := a.engine.Timeline(cmd.Context(), handle)
			if err != nil {
				return WrapExitError(ExitFailure, "timeline failed", err)
			}
			return newFormatter(opts, cmd.OutOrStdout()).Success(entryList(entries))
		},
	}
}

// NewConversationCommand creates the conversation command.
func NewConversationCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conversation <root-id>",
		Short: "Show a conversation, oldest first",
		Long: `Show the posts of a conversation, oldest first.

The conversation is fetched from the origin unless at least two of its
posts are archived or it was fully fetched before.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.engine.Conversation(cmd.Context(), id)
			if err != nil {
				return WrapExitError(ExitFailure, "conversation failed", err)
			}
			return newFormatter(opts, cmd.OutOrStdout()).Success(entryList(entries))
		},
	}
}

// NewPostCommand creates the post command.
func NewPostCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "post <id>",
		Short:         "Show a single post",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			e, ok, err := a.engine.Post(cmd.Context(), id)
			if err != nil {
				return WrapExitError(ExitFailure, "post failed", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("post %d not found", id))
			}
			return newFormatter(opts, cmd.OutOrStdout()).Success(entry(e))
		},
	}
}

// NewUserCommand creates the user command.
func NewUserCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user <id|@handle>",
		Short: "Show a user by ID or handle",
		Long: `Show a user. An argument starting with @ is a handle; anything else
must be a numeric user ID.

Examples:
  archivist user 42
  archivist user @alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, byHandle := strings.CutPrefix(args[0], "@")
			var id uint64
			if !byHandle {
				var err error
				if id, err = parseID(args[0]); err != nil {
					return err
				}
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if byHandle {
				u, ok, err := a.engine.UserByHandle(cmd.Context(), handle)
				if err != nil {
					return WrapExitError(ExitFailure, "user failed", err)
				}
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("user @%s not found", handle))
				}
				return newFormatter(opts, cmd.OutOrStdout()).Success(user(u))
			}

			u, ok, err := a.engine.User(cmd.Context(), id)
			if err != nil {
				return WrapExitError(ExitFailure, "user failed", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("user %d not found", id))
			}
			return newFormatter(opts, cmd.OutOrStdout()).Success(user(u))
		},
	}
}

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Limit int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search archived posts",
		Long: `Search the text of archived posts, newest first. Matching ignores case
and Unicode normalization differences. The origin is never contacted.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.RootOptions, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.engine.Search(cmd.Context(), strings.Join(args, " "), opts.Limit)
			if err != nil {
				return WrapExitError(ExitFailure, "search failed", err)
			}
			return newFormatter(opts.RootOptions, cmd.OutOrStdout()).Success(entryList(entries))
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of results (0 for all)")

	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show archive record counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.engine.Stats(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "stats failed", err)
			}
			return newFormatter(opts, cmd.OutOrStdout()).Success(stats(st))
		},
	}
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}
