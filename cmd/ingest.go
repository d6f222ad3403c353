package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/ingestion"
	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/pipeline"
)

// commitGrace bounds how long an interrupted ingest waits for a running commit
const commitGrace = 30 * time.Second

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Score resumes from files, directories or Gmail attachments",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("gmail-subject")
		if len(args) == 0 && subject == "" {
			return errors.New("provide at least one path or --gmail-subject")
		}
		return ingest(cmd.Context(), args, subject)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("gmail-subject", "s", "", "fetch attachments from Gmail messages with this subject")
}

func ingest(parent context.Context, paths []string, subject string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.printNotifications(os.Stdout)

	var files []models.FileHandle
	if len(paths) > 0 {
		local, err := ingestion.LoadPaths(paths)
		if err != nil {
			return err
		}
		files = append(files, local...)
	}
	if subject != "" {
		gmail, err := rt.gmailSource(ctx)
		if err != nil {
			return err
		}
		attachments, err := gmail.FetchAttachments(ctx, subject)
		if err != nil {
			return err
		}
		files = append(files, attachments...)
	}

	rt.logger.Info("ingesting", zap.Int("files", len(files)), zap.String("settings", weightsSummary(rt.settings.Current())))

	p, err := rt.newPipeline(ctx, pipeline.WithProgress(func(current, total int, message string) {
		fmt.Printf("  %d/%d %s\n", current, total, message)
	}))
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go p.Run(runCtx)

	result, err := awaitBatch(ctx, p.Enqueue(ctx, files), commitGrace, rt.logger)
	if err != nil {
		return err
	}

	fmt.Printf("\nCommitted %d of %d file(s), %d high performers, %d auto-shortlisted\n",
		len(result.Committed), result.Submitted, result.HighPerformers, result.AutoShortlisted)
	for _, c := range result.Committed {
		fmt.Printf("  %3d  %-12s %s (%s)\n", c.Score, c.Status, c.Name, c.File)
	}
	if rt.store.Degraded() {
		return errors.New("candidates could not be persisted")
	}
	return nil
}

type batchWaiter interface {
	Wait(ctx context.Context) (pipeline.Result, error)
	Done() <-chan struct{}
}

// awaitBatch waits for b. When ctx ends first it keeps waiting up to grace,
// so a commit already in progress finishes before the backend is closed.
func awaitBatch(ctx context.Context, b batchWaiter, grace time.Duration, log *zap.Logger) (pipeline.Result, error) {
	result, err := b.Wait(ctx)
	if ctx.Err() == nil {
		return result, err
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-b.Done():
		result, err = b.Wait(context.Background())
		if err == nil {
			log.Info("interrupted after the batch was committed", zap.Int("committed", len(result.Committed)))
		}
		return result, err
	case <-timer.C:
		log.Warn("gave up waiting for the batch to finish", zap.Duration("grace", grace))
		return pipeline.Result{}, ctx.Err()
	}
}
