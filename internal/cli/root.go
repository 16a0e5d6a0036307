// Package cli implements deptctl, the operator command line for the
// department portal.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/bootstrap"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/config"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
	"github.com/noah-isme/dept-portal-api/pkg/storage"
)

// operator is the identity CLI mutations are recorded under.
var operator = service.Actor{ID: "deptctl", Username: "deptctl", Name: "deptctl", Role: models.RoleTCM, Admin: true}

// Env holds what the commands act on.
type Env struct {
	Store   recordstore.Store
	Users   *service.UserService
	Scores  *service.ScoreService
	Exports *service.ExportService
	Close   func() error
}

// Opener builds an Env for one command run.
type Opener func(ctx context.Context) (*Env, error)

// ConfigOpener loads the environment configuration and opens the configured store.
func ConfigOpener(logger *zap.Logger) Opener {
	return func(ctx context.Context) (*Env, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		store, closer, err := bootstrap.OpenStore(ctx, cfg, nil, logger)
		if err != nil {
			return nil, err
		}
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			_ = closer()
			return nil, err
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		return NewEnv(store, files, signer, service.NewCalendar(cfg.Timezone), logger, closer), nil
	}
}

// NewEnv wires the services over store.
func NewEnv(store recordstore.Store, files *storage.LocalStorage, signer *storage.SignedURLSigner, calendar *service.Calendar, logger *zap.Logger, closer func() error) *Env {
	if closer == nil {
		closer = func() error { return nil }
	}
	repos := repository.NewCollections(store, repository.WithLogger(logger))
	exports := service.NewExportService(files, signer, service.ExportConfig{}, logger)
	return &Env{
		Store:   store,
		Users:   service.NewUserService(repos.Users, nil, logger),
		Scores:  service.NewScoreService(repos.Scores, repos.Users, exports, calendar, logger),
		Exports: exports,
		Close:   closer,
	}
}

// NewRootCommand assembles deptctl.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "deptctl",
		Short:         "Operate the department portal record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newUsersCommand(open), newScoresCommand(open), newStoreCommand(open))
	return root
}

func withEnv(open Opener, run func(cmd *cobra.Command, env *Env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck
		return run(cmd, env, args)
	}
}

func newUsersCommand(open Opener) *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Inspect and approve members"}

	var pending bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: withEnv(open, func(cmd *cobra.Command, env *Env, _ []string) error {
			filter := models.UserFilter{Page: 1, PageSize: 1000}
			if pending {
				approved := false
				filter.Approved = &approved
			}
			items, _, err := env.Users.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), items)
		}),
	}
	list.Flags().BoolVar(&pending, "pending", false, "only accounts awaiting approval")

	approve := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending account",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(open, func(cmd *cobra.Command, env *Env, args []string) error {
			user, err := env.Users.Approve(cmd.Context(), operator, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s (%s)\n", user.Username, user.Name)
			return nil
		}),
	}

	users.AddCommand(list, approve)
	return users
}

func printUsers(out io.Writer, users []models.User) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tROLE\tAPPROVED\tCLASSES")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n", u.ID, u.Username, u.Name, u.Role, u.IsApproved, len(u.AssignedClasses))
	}
	return w.Flush()
}

func newScoresCommand(open Opener) *cobra.Command {
	scores := &cobra.Command{Use: "scores", Short: "Merit sheet tools"}

	var period, format, out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the merit table to a file",
		Args:  cobra.NoArgs,
		RunE: withEnv(open, func(cmd *cobra.Command, env *Env, _ []string) error {
			result, err := env.Scores.Export(cmd.Context(), period, format)
			if err != nil {
				return err
			}
			signed, file, err := env.Exports.Resolve(result.Token)
			if err != nil {
				return err
			}
			defer file.Close()

			dest := out
			if dest == "" {
				dest = signed.Name
			}
			target, err := os.Create(dest)
			if err != nil {
				return fmt.Errorf("create %s: %w", dest, err)
			}
			if _, err := io.Copy(target, file); err != nil {
				_ = target.Close()
				return fmt.Errorf("write %s: %w", dest, err)
			}
			if err := target.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dest)
			return nil
		}),
	}
	export.Flags().StringVar(&period, "period", models.ScorePeriods[0], "score period")
	export.Flags().StringVar(&format, "format", "xlsx", "xlsx or csv")
	export.Flags().StringVar(&out, "out", "", "output path (defaults to the generated file name)")

	scores.AddCommand(export)
	return scores
}

func newStoreCommand(open Opener) *cobra.Command {
	store := &cobra.Command{Use: "store", Short: "Record store diagnostics"}
	check := &cobra.Command{
		Use:   "check",
		Short: "Ping the store and count records per entity",
		Args:  cobra.NoArgs,
		RunE: withEnv(open, func(cmd *cobra.Command, env *Env, _ []string) error {
			ctx := cmd.Context()
			if err := env.Store.Ping(ctx); err != nil {
				return fmt.Errorf("store unreachable: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENTITY\tRECORDS")
			for _, entity := range recordstore.Entities {
				records, err := env.Store.List(ctx, entity)
				if err != nil {
					return fmt.Errorf("list %s: %w", entity, err)
				}
				fmt.Fprintf(w, "%s\t%d\n", entity, len(records))
			}
			return w.Flush()
		}),
	}
	store.AddCommand(check)
	return store
}
