package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/pkg/queue"
	"github.com/gbp-politico/backend/pkg/redis"
	"github.com/gbp-politico/backend/pkg/storage"
)

var (
	hideRun     bool
	purgeSource bool
	dlqLimit    int64
	atomicRun   bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show how a file would be imported without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		empresa, err := requireEmpresa()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		p, err := a.importService(nil).Preview(cmd.Context(), empresa, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}),
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an eleitor file for an empresa",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		empresa, err := requireEmpresa()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if atomicRun {
			a.cfg.Import.Atomic = true
		}
		svc := a.importService(progressPrinter{w: cmd.ErrOrStderr()})
		res, err := svc.Import(cmd.Context(), empresa, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %d records in %d batches, %d rows normalized\n",
			res.Run.ID, res.Run.Progress.Processed, res.Run.Batches, res.Run.RowsWithIssues)
		if res.Warning != "" {
			fmt.Fprintln(out, "warning:", res.Warning)
		}
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the imports of an empresa",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		empresa, err := requireEmpresa()
		if err != nil {
			return err
		}
		runs, err := a.importService(nil).List(cmd.Context(), empresa)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tRECORDS\tNORMALIZED\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.ArquivoNome, r.RegistrosProcessados, r.RegistrosErro, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Archive and delete the records of an import",
	Long:  "Copies the records of the import to the archive, removes them and relabels the run. Use --hide for runs with no records left.",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		empresa, err := requireEmpresa()
		if err != nil {
			return err
		}
		runID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
		run, err := a.importService(nil).Get(cmd.Context(), empresa, runID)
		if err != nil {
			return err
		}
		svc := a.archiveService(progressPrinter{w: cmd.ErrOrStderr()})

		out := cmd.OutOrStdout()
		if hideRun {
			if _, err := svc.Hide(cmd.Context(), empresa, runID); err != nil {
				return err
			}
			fmt.Fprintf(out, "run %s hidden\n", runID)
			return removeSource(cmd, a, run)
		}
		res, err := svc.Delete(cmd.Context(), empresa, runID)
		if err != nil {
			return err
		}
		if res.RequiresConfirmation {
			fmt.Fprintf(out, "run %s has no records left; rerun with --hide to remove it from the history\n", runID)
			return nil
		}
		fmt.Fprintf(out, "run %s: %d archived, %d deleted\n", runID, res.Archived, res.Deleted)
		if res.Warning != "" {
			fmt.Fprintln(out, "warning:", res.Warning)
		}
		return removeSource(cmd, a, run)
	}),
}

// removeSource deletes the uploaded file of a retired run when --purge-source is set.
func removeSource(cmd *cobra.Command, a *app, run *models.UploadHistory) error {
	if !purgeSource || run.ObjectKey == nil {
		return nil
	}
	s3Client, err := storage.NewS3(cmd.Context(), storage.S3Config{
		Region:          a.cfg.AWS.Region,
		AccessKeyID:     a.cfg.AWS.AccessKeyID,
		SecretAccessKey: a.cfg.AWS.SecretAccessKey,
		ImportsBucket:   a.cfg.AWS.ImportsBucket,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := s3Client.DeleteImport(cmd.Context(), *run.ObjectKey); err != nil {
		return fmt.Errorf("purge source: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "source file %s removed\n", *run.ObjectKey)
	return nil
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Show import jobs that failed permanently",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		rdb, err := redis.NewClient(cmd.Context(), a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.logger)
		if err != nil {
			return err
		}
		defer rdb.Close()

		jobs, err := queue.NewQueue(rdb.Client, a.logger).DeadLetters(cmd.Context(), dlqLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB\tTYPE\tATTEMPTS\tCREATED\tREASON")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", j.ID, j.Type, j.Attempt, j.CreatedAt.Format("2006-01-02 15:04"), j.Reason)
		}
		return tw.Flush()
	}),
}

func init() {
	importCmd.Flags().BoolVar(&atomicRun, "atomic", false, "Write the whole file in one transaction")
	deleteCmd.Flags().BoolVar(&hideRun, "hide", false, "Hide a run that has no records left")
	deleteCmd.Flags().BoolVar(&purgeSource, "purge-source", false, "Also remove the uploaded file from S3")
	dlqCmd.Flags().Int64Var(&dlqLimit, "limit", 50, "Maximum jobs to show")

	rootCmd.AddCommand(previewCmd, importCmd, listCmd, deleteCmd, dlqCmd)
}
