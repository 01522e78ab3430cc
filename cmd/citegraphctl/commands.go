package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"citegraph/application/commands"
	"citegraph/application/queries"
	"citegraph/infrastructure/config"
	"citegraph/infrastructure/di"

	"github.com/spf13/cobra"
)

// cli holds the state shared by every subcommand
type cli struct {
	out        io.Writer
	configPath string
	storeType  string
	sqlitePath string
	logLevel   string
	userID     string

	container *di.Container
	cleanup   func()
}

// newRootCmd builds the command tree. The returned func releases the
// store opened by whichever subcommand ran.
func newRootCmd(out io.Writer) (*cobra.Command, func()) {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:           "citegraphctl",
		Short:         "Administer a citegraph store",
		Long:          "citegraphctl adds papers and citations, casts votes and inspects the graph against a configured store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML configuration file (defaults to $CONFIG_FILE)")
	flags.StringVar(&c.storeType, "store", "", "store backend: memory, sqlite or dynamodb")
	flags.StringVar(&c.sqlitePath, "sqlite-path", "", "SQLite database path")
	flags.StringVar(&c.logLevel, "log-level", "error", "log level")
	flags.StringVar(&c.userID, "user", "", "acting user id")

	rootCmd.AddCommand(
		c.paperCmd(),
		c.citeCmd(),
		c.voteCmd(),
		c.expandCmd(),
		c.searchCmd(),
		c.flaggedCmd(),
	)
	return rootCmd, c.close
}

func (c *cli) close() {
	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
	}
}

func (c *cli) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFrom(c.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}

	if c.storeType != "" {
		cfg.Store.Type = c.storeType
	}
	if c.sqlitePath != "" {
		cfg.Store.SQLitePath = c.sqlitePath
	}
	cfg.Server.LogLevel = c.logLevel
	cfg.RateLimit.VotesPerMinute = 0
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.container, c.cleanup, err = di.InitializeContainer(ctx, cfg)
	return err
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) paperCmd() *cobra.Command {
	paperCmd := &cobra.Command{
		Use:   "paper",
		Short: "Manage papers",
	}

	var add commands.AddPaperCommand
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a paper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.container.CommandBus.Send(cmd.Context(), add)
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
	addCmd.Flags().StringVar(&add.Title, "title", "", "paper title")
	addCmd.Flags().StringArrayVar(&add.Authors, "author", nil, "author name (repeatable)")
	addCmd.Flags().StringVar(&add.Abstract, "abstract", "", "abstract")
	addCmd.Flags().IntVar(&add.Year, "year", 0, "publication year")
	addCmd.Flags().StringVar(&add.URL, "url", "", "paper URL")
	addCmd.Flags().StringArrayVar(&add.Keywords, "keyword", nil, "keyword (repeatable)")

	var includeHidden bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List papers in listing order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.container.QueryBus.Ask(cmd.Context(), queries.ListPapersQuery{
				IncludeHidden: includeHidden,
				UserID:        c.userID,
			})
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
	listCmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "include papers below the hide threshold")

	getCmd := &cobra.Command{
		Use:   "get [paper-id]",
		Short: "Show one paper with its tally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.container.QueryBus.Ask(cmd.Context(), queries.GetPaperQuery{PaperID: args[0], UserID: c.userID})
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}

	paperCmd.AddCommand(addCmd, listCmd, getCmd)
	return paperCmd
}

func (c *cli) citeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cite [citing-id] [cited-id]",
		Short: "Record that one paper cites another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.container.CommandBus.Send(cmd.Context(), commands.AddCitationCommand{
				CitingID: args[0],
				CitedID:  args[1],
			})
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
}

func (c *cli) voteCmd() *cobra.Command {
	values := map[string]int{"up": 1, "down": -1, "clear": 0}

	return &cobra.Command{
		Use:       "vote [up|down|clear] [paper|edge] [target-id]",
		Short:     "Cast, change or clear the acting user's vote",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"up", "down", "clear"},
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok := values[args[0]]
			if !ok {
				return fmt.Errorf("unknown vote %q, want up, down or clear", args[0])
			}
			out, err := c.container.CommandBus.Send(cmd.Context(), commands.CastVoteCommand{
				TargetKind: args[1],
				TargetID:   args[2],
				UserID:     c.userID,
				Value:      value,
			})
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
}

func (c *cli) expandCmd() *cobra.Command {
	var (
		depth     int
		direction string
	)
	expandCmd := &cobra.Command{
		Use:   "expand [seed-id]",
		Short: "Expand the citation neighbourhood of a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := queries.ExpandGraphQuery{
				SeedID:    args[0],
				UserID:    c.userID,
				Direction: direction,
			}
			if cmd.Flags().Changed("depth") {
				q.Depth = &depth
			}
			out, err := c.container.QueryBus.Ask(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
	expandCmd.Flags().IntVar(&depth, "depth", 1, "expansion depth")
	expandCmd.Flags().StringVar(&direction, "direction", "", "both, outgoing or incoming")
	return expandCmd
}

func (c *cli) searchCmd() *cobra.Command {
	var includeHidden bool
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search papers by title, author, abstract or keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.container.QueryBus.Ask(cmd.Context(), queries.SearchPapersQuery{
				Query:         args[0],
				IncludeHidden: includeHidden,
				UserID:        c.userID,
			})
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
	searchCmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "include papers below the hide threshold")
	return searchCmd
}

func (c *cli) flaggedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flagged",
		Short: "List downvoted papers for moderation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.container.QueryBus.Ask(cmd.Context(), queries.ListFlaggedPapersQuery{})
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
}
