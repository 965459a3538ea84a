// cmd/lvcs/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lvcs/internal/config"
	lerrors "lvcs/internal/errors"
	"lvcs/internal/logging"
	"lvcs/internal/progress"
	"lvcs/internal/repo"
	"lvcs/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rootDir    string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "lvcs",
	Short: "lvcs versions large binary trees",
	Long: `lvcs keeps whole-directory snapshots of large binary files. Every
distinct file is stored once, and checking out a snapshot hard-links
the stored files into the working tree instead of copying them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "Directory holding the repository and working tree")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (defaults to config/config.$LVCS_ENV.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log operations to stderr")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			r, err := repo.Init(rootDir, cfg, repo.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()

			success("Initialized empty repository in %s", r.Root)
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add <dir> <tag>",
		Short: "Snapshot a directory as a new patch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				if err := r.Add(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				success("Added patch %s", args[1])
				return nil
			})
		},
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List patches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				tags, err := r.List()
				if err != nil {
					return err
				}
				current, err := r.Current()
				if err != nil {
					return err
				}
				green := color.New(color.FgGreen).SprintFunc()
				for _, tag := range tags {
					if tag == current {
						fmt.Printf("* %s\n", green(tag))
						continue
					}
					fmt.Printf("  %s\n", tag)
				}
				return nil
			})
		},
	}

	var restoreCmd = &cobra.Command{
		Use:   "restore <tag>",
		Short: "Check out a patch into the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, _ := cmd.Flags().GetBool("clean")
			return withRepo(func(r *repo.Repository) error {
				return r.Restore(cmd.Context(), args[0], clean)
			})
		},
	}
	restoreCmd.Flags().Bool("clean", false, "Rebuild the working tree from scratch")

	var dropCmd = &cobra.Command{
		Use:   "drop <tag>",
		Short: "Delete a patch and the files only it referenced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return withRepo(func(r *repo.Repository) error {
				released, err := r.Drop(cmd.Context(), args[0], dryRun)
				if err != nil {
					return err
				}
				if dryRun {
					fmt.Printf("Dropping %s would remove %d file(s):\n", args[0], len(released))
					for _, fp := range released {
						fmt.Printf("\t%s\n", fp)
					}
				}
				return nil
			})
		},
	}
	dropCmd.Flags().Bool("dry-run", false, "Report what would be removed without removing it")

	var cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove the working tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				if err := r.Clean(cmd.Context()); err != nil {
					return err
				}
				success("Working tree removed")
				return nil
			})
		},
	}

	var wipeCmd = &cobra.Command{
		Use:   "wipe",
		Short: "Delete the repository and working tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("wipe deletes every patch; rerun with --force to confirm")
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			r, err := repo.Open(rootDir, cfg, repo.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Wipe(); err != nil {
				return err
			}
			success("Wiped %s", r.Root)
			return nil
		},
	}
	wipeCmd.Flags().BoolP("force", "f", false, "Confirm deletion")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Compare the working tree with the current patch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				st, err := r.Status()
				if err != nil {
					return err
				}
				if st.Current == "" {
					fmt.Println("No patch checked out")
				} else {
					fmt.Printf("On patch %s\n", st.Current)
				}
				if st.Clean() {
					fmt.Println("Working tree matches")
					return nil
				}

				red := color.New(color.FgRed).SprintFunc()
				blue := color.New(color.FgBlue).SprintFunc()
				if len(st.Missing) > 0 {
					fmt.Println("\nMissing files:")
					for _, p := range st.Missing {
						fmt.Printf("\t%s %s\n", red("D"), p)
					}
				}
				if len(st.Extra) > 0 {
					fmt.Println("\nUntracked files:")
					for _, p := range st.Extra {
						fmt.Printf("\t%s %s\n", blue("?"), p)
					}
				}
				fmt.Println()
				return nil
			})
		},
	}

	var verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every stored file and check references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				report, err := r.Verify(cmd.Context())
				if err != nil {
					return err
				}
				if report.OK() {
					success("%d file(s) verified", report.Checked)
					return nil
				}
				printList("Corrupt", report.Corrupt)
				printList("Unindexed", report.Unindexed)
				printList("Unreferenced", report.Orphaned)
				printList("Missing", report.Dangling)
				return fmt.Errorf("verification found problems in %d file(s)", report.Checked)
			})
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch <dir>",
		Short: "Add a patch whenever a directory settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			debounce, _ := cmd.Flags().GetDuration("debounce")
			return withRepo(func(r *repo.Repository) error {
				target, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				cfg := r.Config()
				w, err := watch.New(target, debounce, func(ctx context.Context) error {
					tag := fmt.Sprintf("%s-%s", prefix, time.Now().UTC().Format("20060102T150405Z"))
					err := r.Add(ctx, target, tag)
					if lerrors.TypeOf(err) == lerrors.ErrorTypePatchAlreadyExists {
						return nil
					}
					if err == nil {
						success("Added patch %s", tag)
					}
					return err
				}, r.Logger(), cfg.RepoName, cfg.CurrentName)
				if err != nil {
					return err
				}
				fmt.Printf("Watching %s (Ctrl+C to stop)\n", target)
				return w.Run(cmd.Context())
			})
		},
	}
	watchCmd.Flags().String("prefix", "auto", "Tag prefix for generated patches")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a snapshot")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(wipeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(watchCmd)
}

func setup() (*config.Config, *logging.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewNop()
	if verbose {
		logger, err = logging.NewDevelopment()
		if err != nil {
			return nil, nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	return cfg, logger, nil
}

// withRepo opens the repository under --root, runs fn and closes it.
func withRepo(fn func(r *repo.Repository) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	r, err := repo.Open(rootDir, cfg,
		repo.WithLogger(logger),
		repo.WithProgress(progress.NewConsole(os.Stdout)),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	return fn(r)
}

func success(format string, args ...any) {
	color.New(color.FgGreen).Printf(format+"\n", args...)
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, item := range items {
		fmt.Printf("\t%s\n", item)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		msg := err.Error()
		if lerrors.TypeOf(err) == lerrors.ErrorTypeOperationCancelled {
			msg = "interrupted; rerun the command to finish"
		}
		fmt.Fprintln(os.Stderr, red("error:"), strings.TrimSpace(msg))
		os.Exit(1)
	}
}
