package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-review-sync/internal/collector"
	"github.com/kurihiro0119/github-review-sync/internal/config"
	"github.com/kurihiro0119/github-review-sync/internal/cursor"
	"github.com/kurihiro0119/github-review-sync/internal/domain"
	"github.com/kurihiro0119/github-review-sync/internal/review"
	"github.com/kurihiro0119/github-review-sync/internal/storage"
	"github.com/kurihiro0119/github-review-sync/internal/storage/postgres"
	"github.com/kurihiro0119/github-review-sync/internal/storage/sqlite"
	"github.com/kurihiro0119/github-review-sync/internal/syncer"
	"github.com/kurihiro0119/github-review-sync/internal/vcs"
	"github.com/kurihiro0119/github-review-sync/pkg/client"
)

var (
	cfgFile      string
	outputJSON   bool
	useAPI       bool
	verbose      bool
	since        string
	skipIdentity bool
	skipPull     bool
	page         int
)

var rootCmd = &cobra.Command{
	Use:   "review-sync",
	Short: "Incremental commit and commit comment sync",
	Long: `A CLI tool for pulling new commits and commit comments from GitHub repositories.

Commits are read from a local clone of the repository and enriched with the
GitHub accounts of their authors. Comments are fetched page by page and carry
the diff lines they point at. Progress is kept per repository so every run
only returns what is new.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

var commitsCmd = &cobra.Command{
	Use:   "commits [owner/repo]",
	Short: "List commits after the cursor",
	Long:  `List the commits after the stored cursor (or --since) without moving the cursor.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCommits,
}

var commentsCmd = &cobra.Command{
	Use:   "comments [owner/repo]",
	Short: "List one page of commit comments",
	Long:  `List a page of commit comments with the diff lines they point at. Defaults to the stored page.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runComments,
}

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or reset the stored progress",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show [owner/repo]",
	Short: "Show the stored progress of a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runCursorShow,
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset [owner/repo]",
	Short: "Forget the stored progress of a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runCursorReset,
}

var syncCmd = &cobra.Command{
	Use:   "sync [owner/repo]",
	Short: "Run a commit pass and a comment pass",
	Long:  `Print the new commits and comments of a repository, then advance its cursors.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&useAPI, "api", false, "talk to the API server at API_ENDPOINT instead of running locally")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log git commands and passes")

	commitsCmd.Flags().StringVar(&since, "since", "", "commit to start after (default is the stored cursor)")
	commitsCmd.Flags().BoolVar(&skipIdentity, "no-identity", false, "skip the GitHub account lookup")
	commitsCmd.Flags().BoolVar(&skipPull, "no-pull", false, "skip pulling before reading history")
	commentsCmd.Flags().IntVar(&page, "page", 0, "page to fetch (default is the stored page)")

	rootCmd.AddCommand(commitsCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(cursorCmd)
	cursorCmd.AddCommand(cursorShowCmd)
	cursorCmd.AddCommand(cursorResetCmd)
	rootCmd.AddCommand(syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

// stack holds the local components a command needs
type stack struct {
	store   storage.Storage
	cursors *cursor.Store
	service review.Service
	syncer  syncer.Syncer
}

func newStack(cfg *config.Config) (*stack, error) {
	store, err := getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	runner := vcs.NewRunner(vcs.Options{
		RepoDir:      cfg.RepoDir,
		GitBinary:    cfg.GitBinary,
		RemoteHost:   cfg.RemoteHost,
		AccessToken:  cfg.GitHubToken,
		PrivateClone: cfg.PrivateCloneEnabled(),
	})
	cursors := cursor.NewStore(store)
	service := review.NewService(runner, cursors, collector.NewGitHubCollector(cfg.GitHubToken), review.Options{
		CatchUpCommits: cfg.EffectiveCatchUpCommits(),
	})

	return &stack{
		store:   store,
		cursors: cursors,
		service: service,
		syncer:  syncer.NewSyncer(service, cursors, store, cfg.LeaseTTL, nil),
	}, nil
}

func apiClient(cfg *config.Config) *client.Client {
	return client.NewClient(strings.TrimRight(cfg.APIEndpoint, "/"))
}

func runCommits(cmd *cobra.Command, args []string) error {
	repo, err := domain.NewRepository(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var commits []*domain.CommitRecord
	if useAPI {
		commits, err = apiClient(cfg).GetCommits(ctx, repo.Owner(), repo.Name(), client.CommitsQuery{
			Since:        since,
			SkipIdentity: skipIdentity,
			SkipPull:     skipPull,
		})
	} else {
		st, serr := newStack(cfg)
		if serr != nil {
			return serr
		}
		defer st.store.Close()
		commits, err = st.service.CommitsSince(ctx, repo, review.CommitsOptions{
			From:         since,
			SkipIdentity: skipIdentity,
			SkipPull:     skipPull,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to list commits: %w", err)
	}

	return printCommits(commits)
}

func runComments(cmd *cobra.Command, args []string) error {
	repo, err := domain.NewRepository(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var comments []*domain.CommentRecord
	if useAPI {
		comments, err = apiClient(cfg).GetComments(ctx, repo.Owner(), repo.Name(), page)
	} else {
		st, serr := newStack(cfg)
		if serr != nil {
			return serr
		}
		defer st.store.Close()
		comments, err = st.service.CommentsAt(ctx, repo, page)
	}
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}

	return printComments(comments)
}

func runCursorShow(cmd *cobra.Command, args []string) error {
	repo, err := domain.NewRepository(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var cur *client.Cursor
	if useAPI {
		cur, err = apiClient(cfg).GetCursor(ctx, repo.Owner(), repo.Name())
		if err != nil {
			return fmt.Errorf("failed to get cursor: %w", err)
		}
	} else {
		st, serr := newStack(cfg)
		if serr != nil {
			return serr
		}
		defer st.store.Close()

		cur = &client.Cursor{Repo: repo.FullName}
		if cur.LastCommit, err = st.cursors.LastCommit(ctx, repo); err != nil {
			return fmt.Errorf("failed to get cursor: %w", err)
		}
		if cur.CommentPage, err = st.cursors.CommentPage(ctx, repo); err != nil {
			return fmt.Errorf("failed to get cursor: %w", err)
		}
	}

	if outputJSON {
		return printJSON(cur)
	}

	lastCommit := cur.LastCommit
	if lastCommit == "" {
		lastCommit = "(unset)"
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Cursor", "Value"})
	table.Append([]string{"Repository", cur.Repo})
	table.Append([]string{"Last Commit", lastCommit})
	table.Append([]string{"Comment Page", strconv.Itoa(cur.CommentPage)})
	table.Render()
	return nil
}

func runCursorReset(cmd *cobra.Command, args []string) error {
	repo, err := domain.NewRepository(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if useAPI {
		err = apiClient(cfg).ResetCursor(ctx, repo.Owner(), repo.Name())
	} else {
		st, serr := newStack(cfg)
		if serr != nil {
			return serr
		}
		defer st.store.Close()
		err = st.cursors.Reset(ctx, repo)
	}
	if err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}

	fmt.Printf("Cursor reset for %s\n", repo.FullName)
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	repo, err := domain.NewRepository(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var (
		commitPass, commentPass *domain.SyncPass
		commits                 []*domain.CommitRecord
		comments                []*domain.CommentRecord
	)
	if useAPI {
		c := apiClient(cfg)
		if commitPass, commits, err = c.SyncCommits(ctx, repo.Owner(), repo.Name()); err != nil {
			return fmt.Errorf("commit pass failed: %w", err)
		}
		if commentPass, comments, err = c.SyncComments(ctx, repo.Owner(), repo.Name()); err != nil {
			return fmt.Errorf("comment pass failed: %w", err)
		}
	} else {
		st, serr := newStack(cfg)
		if serr != nil {
			return serr
		}
		defer st.store.Close()

		commitPass, err = st.syncer.SyncCommits(ctx, repo, func(_ context.Context, _ *domain.Repository, batch []*domain.CommitRecord) error {
			commits = batch
			return nil
		})
		if err != nil {
			return fmt.Errorf("commit pass failed: %w", err)
		}
		commentPass, err = st.syncer.SyncComments(ctx, repo, func(_ context.Context, _ *domain.Repository, _ int, batch []*domain.CommentRecord) error {
			comments = batch
			return nil
		})
		if err != nil {
			return fmt.Errorf("comment pass failed: %w", err)
		}
	}

	if outputJSON {
		return printJSON(map[string]any{
			"commit_pass":  commitPass,
			"commits":      commits,
			"comment_pass": commentPass,
			"comments":     comments,
		})
	}

	fmt.Printf("\nSync: %s\n\n", repo.FullName)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pass", "Records", "From", "To", "Advanced"})
	for _, pass := range []*domain.SyncPass{commitPass, commentPass} {
		table.Append([]string{
			string(pass.Kind),
			strconv.Itoa(pass.Count),
			shortHash(pass.FromCursor),
			shortHash(pass.ToCursor),
			strconv.FormatBool(pass.Advanced),
		})
	}
	table.Render()

	if len(commits) > 0 {
		fmt.Println()
		if err := printCommits(commits); err != nil {
			return err
		}
	}
	if len(comments) > 0 {
		fmt.Println()
		return printComments(comments)
	}
	return nil
}

func printCommits(commits []*domain.CommitRecord) error {
	if outputJSON {
		return printJSON(commits)
	}
	if len(commits) == 0 {
		fmt.Println("No new commits")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Hash", "Date", "Author", "Login", "Subject", "Diff"})
	for _, c := range commits {
		diff := strconv.Itoa(len(c.Diff))
		if c.DiffTruncated {
			diff += " (truncated)"
		}
		table.Append([]string{
			shortHash(c.Hash),
			c.Date.Format("2006-01-02 15:04"),
			c.Name,
			deref(c.AuthorLogin),
			c.Subject,
			diff,
		})
	}
	table.Render()
	return nil
}

func printComments(comments []*domain.CommentRecord) error {
	if outputJSON {
		return printJSON(comments)
	}
	if len(comments) == 0 {
		fmt.Println("No comments on this page")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Commit", "Login", "Path", "Position", "Body"})
	for _, c := range comments {
		position := ""
		if c.Position != nil {
			position = strconv.Itoa(*c.Position)
		}
		table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			shortHash(c.CommitHash),
			deref(c.Login),
			deref(c.Path),
			position,
			firstLine(c.Body),
		})
	}
	table.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
