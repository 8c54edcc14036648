package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"doclife/internal/app"
	"doclife/internal/config"
	"doclife/internal/doc"
	"doclife/internal/encryption"
	"doclife/internal/policy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a DocLifeApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Publish", "Sync").
func newApp(ctx context.Context, operation string) (*app.DocLifeApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if actor := os.Getenv("DOCLIFE_ACTOR"); actor != "" {
		cfg.Actor = actor
	}

	a, err := app.NewDocLifeApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// runDoc is the shape of every command that changes one document.
func runDoc(operation string, fn func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), operation)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := fn(cmd.Context(), a, cmd, args[0])
		if err != nil {
			return err
		}
		printResult(d)
		return nil
	}
}

var rootCmd = &cobra.Command{
	Use:          "doclife",
	Short:        "Document lifecycle manager",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init PROJECT_ID",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Project:  %s\n", cfg.ProjectID)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Project:      %s\n", cfg.ProjectID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Private Root: %s\n", cfg.Workspace.PrivateRoot)
		fmt.Printf("Mirror:       %s\n", cfg.Mirror.Type)
		fmt.Printf("Backup:       %s (encrypted: %v)\n", cfg.Backup.Type, cfg.Backup.Encrypt)
		fmt.Printf("Policy:       %s\n", cfg.PolicyPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the public mirror is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CheckMirror")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckMirror(); err != nil {
			return fmt.Errorf("mirror check failed: %w", err)
		}
		fmt.Println("Mirror OK")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return fmt.Errorf("a key pair already exists at %s", cfg.Encryption.PrivateKeyPath)
		}
		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Key pair written to %s\n", cfg.Encryption.PublicKeyPath)
		if !cfg.Backup.Encrypt {
			fmt.Println(hintStyle.Render("Set backup.encrypt = true to encrypt backups."))
		}
		return nil
	},
}

// policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the effective auto-publish and review policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := policy.LoadFile(cfg.PolicyPath)
		if err != nil {
			return err
		}
		return policy.Write(os.Stdout, p)
	},
}

// entity command
var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage owning entities",
}

var entityRegisterCmd = &cobra.Command{
	Use:   "register TYPE ID [TITLE]",
	Short: "Register a work item, task or project",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RegisterEntity")
		if err != nil {
			return err
		}
		defer a.Close()

		title := ""
		if len(args) == 3 {
			title = args[2]
		}
		if err := a.RegisterEntity(cmd.Context(), args[0], args[1], title); err != nil {
			return err
		}
		fmt.Printf("Registered %s %s\n", args[0], args[1])
		return nil
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List owning entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListEntities")
		if err != nil {
			return err
		}
		defer a.Close()

		entities, err := a.ListEntities(cmd.Context())
		if err != nil {
			return err
		}
		if len(entities) == 0 {
			fmt.Println("No entities registered.")
			return nil
		}
		for _, e := range entities {
			fmt.Printf("%-10s  %-12s  %-3s  %s\n", e.Type, e.ID, e.Phase, e.Title)
		}
		return nil
	},
}

// phase command
var phaseCmd = &cobra.Command{
	Use:   "phase WORK_ITEM PHASE",
	Short: "Move a work item to a new phase and apply auto-publish rules",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SetPhase")
		if err != nil {
			return err
		}
		defer a.Close()

		published, err := a.SetPhase(cmd.Context(), args[0], doc.Phase(args[1]))
		for _, d := range published {
			printResult(d)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s is now in phase %s (%d published)\n", args[0], args[1], len(published))
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add TYPE CONTENT_FILE",
	Short: "Add a document as a draft",
	Long:  "Add a document as a draft. CONTENT_FILE may be - to read from stdin.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, _ := cmd.Flags().GetString("entity")
		title, _ := cmd.Flags().GetString("title")
		filePath, _ := cmd.Flags().GetString("path")
		visibility, _ := cmd.Flags().GetString("visibility")
		yes, _ := cmd.Flags().GetBool("yes")

		entityType, entityID, ok := strings.Cut(entity, "/")
		if !ok {
			return fmt.Errorf("--entity must be TYPE/ID, got %q", entity)
		}
		content, err := app.ReadContent(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "AddDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		req := doc.AddRequest{
			EntityType:   entityType,
			EntityID:     entityID,
			DocumentType: doc.DocumentType(args[0]),
			Title:        title,
			Content:      content,
			FilePath:     filePath,
			Visibility:   doc.Visibility(visibility),
		}
		if !yes && args[1] != "-" && isInteractive() {
			req.Resolver = promptResolver()
		}
		d, err := a.AddDocument(cmd.Context(), req)
		if err != nil {
			return err
		}
		printResult(d)
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit ID [REVIEWER...]",
	Short: "Submit a draft for review",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SubmitReview")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.SubmitReview(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		printResult(d)
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve ID",
	Short: "Approve a document in review",
	Args:  cobra.ExactArgs(1),
	RunE: runDoc("Approve", func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error) {
		comment, _ := cmd.Flags().GetString("comment")
		return a.Approve(ctx, id, comment)
	}),
}

var rejectCmd = &cobra.Command{
	Use:   "reject ID",
	Short: "Reject a document in review",
	Args:  cobra.ExactArgs(1),
	RunE: runDoc("Reject", func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return a.Reject(ctx, id, reason)
	}),
}

var publishCmd = &cobra.Command{
	Use:   "publish ID",
	Short: "Publish an approved document",
	Args:  cobra.ExactArgs(1),
	RunE: runDoc("Publish", func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error) {
		force, _ := cmd.Flags().GetBool("force")
		return a.Publish(ctx, id, force)
	}),
}

var unpublishCmd = &cobra.Command{
	Use:   "unpublish ID",
	Short: "Withdraw a published document",
	Args:  cobra.ExactArgs(1),
	RunE: runDoc("Unpublish", func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return a.Unpublish(ctx, id, reason)
	}),
}

var archiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Archive a document",
	Args:  cobra.ExactArgs(1),
	RunE: runDoc("Archive", func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return a.Archive(ctx, id, reason)
	}),
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive ID",
	Short: "Restore an archived document",
	Args:  cobra.ExactArgs(1),
	RunE: runDoc("Unarchive", func(ctx context.Context, a *app.DocLifeApp, cmd *cobra.Command, id string) (*doc.Document, error) {
		return a.Unarchive(ctx, id)
	}),
}

var visibilityCmd = &cobra.Command{
	Use:   "visibility ID private|team|public",
	Short: "Change who a document is for",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd.Context(), "SetVisibility")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.SetVisibility(cmd.Context(), args[0], doc.Visibility(args[1]), force)
		if err != nil {
			return err
		}
		printResult(d)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile published documents with the public mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		category, _ := cmd.Flags().GetString("category")
		docType, _ := cmd.Flags().GetString("type")

		a, err := newApp(cmd.Context(), "Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sync(cmd.Context(), doc.SyncRequest{
			DryRun:       dryRun,
			Category:     doc.Category(category),
			DocumentType: doc.DocumentType(docType),
		})
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		app.WriteSyncReport(os.Stdout, report)
		if report.Failed > 0 {
			return fmt.Errorf("%d document(s) could not be synced", report.Failed)
		}
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move working copies to their canonical paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context(), "MigratePaths")
		if err != nil {
			return err
		}
		defer a.Close()

		if !dryRun {
			if err := unlockBackups(a); err != nil {
				return err
			}
		}

		report, err := a.MigratePaths(cmd.Context(), dryRun)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		app.WriteMigrationReport(os.Stdout, report)
		if report.Failed > 0 {
			return fmt.Errorf("%d document(s) could not be migrated", report.Failed)
		}
		return nil
	},
}

// expire command
var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Apply the review timeout to stale reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ExpireReviews")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.ExpireReviews(cmd.Context())
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("%-8s  %s  (%v)\n", "failed", r.DocumentID, r.Err)
				continue
			}
			fmt.Printf("%-8s  %s\n", r.Action, r.DocumentID)
		}
		fmt.Printf("%d review(s) expired\n", len(results)-failed)
		if failed > 0 {
			return fmt.Errorf("%d review(s) could not be expired", failed)
		}
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		category, _ := cmd.Flags().GetString("category")
		docType, _ := cmd.Flags().GetString("type")
		entity, _ := cmd.Flags().GetString("entity")

		filter := doc.DocumentFilter{
			Stage:        doc.Stage(stage),
			Category:     doc.Category(category),
			DocumentType: doc.DocumentType(docType),
		}
		if entity != "" {
			entityType, entityID, ok := strings.Cut(entity, "/")
			if !ok {
				return fmt.Errorf("--entity must be TYPE/ID, got %q", entity)
			}
			filter.EntityType, filter.EntityID = entityType, entityID
		}

		a, err := newApp(cmd.Context(), "ListDocuments")
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.ListDocuments(cmd.Context(), filter)
		if err != nil {
			return err
		}
		app.WriteDocumentList(os.Stdout, docs)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.GetDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(stageBadge(d.Stage))
		app.WriteDocument(os.Stdout, d)
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit ID",
	Short: "View a document's history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListAudit")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListAudit(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app.WriteAudit(os.Stdout, entries)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}
		app.WriteHistory(os.Stdout, ops)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarise documents per stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.GetStatus(cmd.Context())
		if err != nil {
			return err
		}
		app.WriteStatus(os.Stdout, st)
		return nil
	},
}

// restore-db command
var restoreDBCmd = &cobra.Command{
	Use:   "restore-db VERSION DEST",
	Short: "Restore the metadata database as of an operation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}

		a, err := newApp(cmd.Context(), "RestoreMetadata")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := unlockBackups(a); err != nil {
			return err
		}
		if err := a.RestoreMetadata(version, args[1]); err != nil {
			return err
		}
		fmt.Printf("Restored version %d to %s\n", version, args[1])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
	keysCmd.AddCommand(keysInitCmd)
	entityCmd.AddCommand(entityRegisterCmd)
	entityCmd.AddCommand(entityListCmd)

	// document commands
	addCmd.Flags().StringP("entity", "e", "", "Owning entity as TYPE/ID (e.g. work_item/W-12)")
	addCmd.Flags().StringP("title", "t", "", "Document title")
	addCmd.Flags().StringP("path", "p", "", "Path under the private root (default: built from the title)")
	addCmd.Flags().String("visibility", "", "private, team or public (default: per document type)")
	addCmd.Flags().BoolP("yes", "y", false, "Accept path suggestions without asking")
	addCmd.MarkFlagRequired("entity")
	addCmd.MarkFlagRequired("title")
	approveCmd.Flags().StringP("comment", "m", "", "Review comment")
	rejectCmd.Flags().StringP("reason", "m", "", "Rejection reason")
	publishCmd.Flags().BoolP("force", "f", false, "Copy again even if already published")
	unpublishCmd.Flags().StringP("reason", "m", "", "Why the document is withdrawn")
	archiveCmd.Flags().StringP("reason", "m", "", "Why the document is archived")
	visibilityCmd.Flags().BoolP("force", "f", false, "Unpublish first if the document is published")

	// bulk commands
	syncCmd.Flags().Bool("dry-run", false, "Report drift without repairing it")
	syncCmd.Flags().String("category", "", "Only sync this category")
	syncCmd.Flags().String("type", "", "Only sync this document type")
	migrateCmd.Flags().Bool("dry-run", false, "Show planned moves without moving anything")

	// queries
	listCmd.Flags().String("stage", "", "Filter by stage")
	listCmd.Flags().String("category", "", "Filter by category")
	listCmd.Flags().String("type", "", "Filter by document type")
	listCmd.Flags().StringP("entity", "e", "", "Filter by owning entity TYPE/ID")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	rootCmd.AddCommand(configCmd, keysCmd, policyCmd, entityCmd, phaseCmd)
	rootCmd.AddCommand(addCmd, submitCmd, approveCmd, rejectCmd, publishCmd, unpublishCmd,
		archiveCmd, unarchiveCmd, visibilityCmd)
	rootCmd.AddCommand(syncCmd, migrateCmd, expireCmd, restoreDBCmd)
	rootCmd.AddCommand(listCmd, getCmd, auditCmd, historyCmd, statusCmd)
}
