package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agoralabs/agora/internal/identity"
	"github.com/agoralabs/agora/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	token     string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Agora conversation ledger CLI",
	Long: `agora is the command-line interface for the agora conversation service.

It allows you to create conversations, post statements, cast votes, and
submit atomic batches against an agora server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.agora")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.agora/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "agora server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "participant bearer token")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(votesCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func api() *client.Client {
	return client.New(serverURL, token)
}

// ── create ───────────────────────────────────────────────────────────────────

var (
	createDescription string
	createDuration    time.Duration
	createGateType    string
	createThreshold   int64
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new conversation",
	Long: `Create a conversation with a fixed deadline and an optional eligibility gate:

  agora create "Fee proposal" --duration 72h
  agora create "Holders only" --duration 48h --gate min_balance --threshold 100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := api().CreateConversation(context.Background(), &client.CreateConversationRequest{
			Title:           args[0],
			Description:     createDescription,
			DurationSeconds: int64(createDuration.Seconds()),
			Gate:            client.GateSpec{Type: createGateType, Threshold: createThreshold},
		})
		if err != nil {
			return err
		}
		fmt.Printf("created conversation %s (deadline %s)\n", conv.ID, conv.Deadline.Format(time.RFC3339))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createDescription, "description", "", "Conversation description")
	createCmd.Flags().DurationVar(&createDuration, "duration", 24*time.Hour, "How long the conversation stays open")
	createCmd.Flags().StringVar(&createGateType, "gate", "none", "Eligibility gate: none, min_balance, min_native_balance, name_record")
	createCmd.Flags().Int64Var(&createThreshold, "threshold", 0, "Balance threshold for balance gates")
}

// ── list ─────────────────────────────────────────────────────────────────────

var listCreator string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, optionally filtered by creator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		convs, err := api().ListConversations(context.Background(), listCreator)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCREATOR\tSTATEMENTS\tDEADLINE\tCLOSED")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n",
				c.ID, c.Title, c.Creator, c.StatementCount,
				c.Deadline.Format(time.RFC3339), c.Closed)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listCreator, "creator", "", "Only conversations created by this identity")
}

// ── show ─────────────────────────────────────────────────────────────────────

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation and its statements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		conv, err := api().GetConversation(ctx, args[0])
		if err != nil {
			return err
		}
		stmts, err := api().ListStatements(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s — %s (by %s)\n", conv.ID, conv.Title, conv.Creator)
		if conv.Description != "" {
			fmt.Println(conv.Description)
		}
		state := "open"
		if conv.Closed {
			state = "closed"
		}
		fmt.Printf("%s, deadline %s\n\n", state, conv.Deadline.Format(time.RFC3339))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAUTHOR\tAGREE\tDISAGREE\tCONTENT")
		for _, s := range stmts {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", s.ID, s.Author, s.AgreeCount, s.DisagreeCount, s.Content)
		}
		return w.Flush()
	},
}

// ── post ─────────────────────────────────────────────────────────────────────

var postCmd = &cobra.Command{
	Use:   "post <conversation-id> <content>",
	Short: "Post a statement to a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := api().AddStatement(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("statement %d added\n", id)
		return nil
	},
}

// ── vote ─────────────────────────────────────────────────────────────────────

var voteChoice string

var voteCmd = &cobra.Command{
	Use:   "vote <conversation-id> <statement-id>",
	Short: "Cast a vote on a statement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var stmtID int
		if _, err := fmt.Sscanf(args[1], "%d", &stmtID); err != nil {
			return fmt.Errorf("statement-id must be an integer: %w", err)
		}
		if err := api().CastVote(context.Background(), args[0], stmtID, voteChoice); err != nil {
			return err
		}
		fmt.Println("vote recorded")
		return nil
	},
}

func init() {
	voteCmd.Flags().StringVar(&voteChoice, "choice", client.ChoiceAgree, "Vote choice: agree, disagree, neutral")
}

// ── votes ────────────────────────────────────────────────────────────────────

var votesCmd = &cobra.Command{
	Use:   "votes <conversation-id> <voter>",
	Short: "Show a voter's vote history in a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		votes, err := api().VotesByVoter(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATEMENT\tCHOICE")
		for _, v := range votes {
			fmt.Fprintf(w, "%d\t%d\t%s\n", v.ID, v.StatementID, v.Choice)
		}
		return w.Flush()
	},
}

// ── batch ────────────────────────────────────────────────────────────────────

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch <conversation-id>",
	Short: "Execute a JSON-encoded batch of actions atomically",
	Long: `Batch reads an ordered list of actions from --file (or stdin) and submits
them for atomic execution. Either every action applies, or none do.

The file holds a JSON array:

  [
    {"kind": "add_statement", "content": "We should lower the fee"},
    {"kind": "cast_vote", "statement_id": 0, "choice": "agree"}
  ]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if batchFile != "" {
			f, err := os.Open(batchFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var actions []client.Action
		if err := json.NewDecoder(in).Decode(&actions); err != nil {
			return fmt.Errorf("decode actions: %w", err)
		}

		results, err := api().ExecuteBatch(context.Background(), args[0], actions)
		if err != nil {
			return err
		}
		for i, r := range results {
			fmt.Printf("%d: %s statement %d\n", i, r.Kind, r.StatementID)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "JSON file with the action list (default stdin)")
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSecret string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <identity>",
	Short: "Mint a participant token signed with the shared server secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = viper.GetString("token_secret")
		}
		if secret == "" {
			return fmt.Errorf("--secret (or token_secret in config) is required")
		}
		issuer := identity.NewTokenIssuer([]byte(secret), serverURL, tokenTTL)
		signed, err := issuer.Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Shared token secret of the target server")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("agora", version)
	},
}
