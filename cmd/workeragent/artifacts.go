package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"workeragent/internal/config"
	artifactrepo "workeragent/internal/repository/artifact"
)

var artifactsFlags struct {
	iteration int
	kind      string
	history   bool
}

var artifactsCmd = &cobra.Command{
	Use:   "artifacts <run-id> [path]",
	Short: "List the revisions recorded for a run, or print one of them",
	Long: "Without a path, lists the newest revision of every file of the run.\n" +
		"--iteration narrows the listing to one round, --kind to code, test or\n" +
		"requirements, and --history lists every round instead of the newest.\n" +
		"With a path, prints that file as of --iteration (newest by default).",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := log.New(os.Stderr, "workeragent: ", log.LstdFlags|log.Lmsgprefix)
		store, closeStore, err := newMirror(cfg.Artifact, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		if store == nil {
			return fmt.Errorf("artifact mirror is disabled")
		}

		out := cmd.OutOrStdout()
		if len(args) == 2 {
			return printRevision(cmd.Context(), store, out, args[0], artifactsFlags.iteration, args[1])
		}
		q := artifactrepo.Query{RunID: args[0], Iteration: artifactsFlags.iteration, Kind: artifactsFlags.kind}
		return listRevisions(cmd.Context(), store, out, q, artifactsFlags.history)
	},
}

func init() {
	f := artifactsCmd.Flags()
	f.IntVar(&artifactsFlags.iteration, "iteration", 0, "round to show; 0 means the newest")
	f.StringVar(&artifactsFlags.kind, "kind", "", "only list files of this kind")
	f.BoolVar(&artifactsFlags.history, "history", false, "list every round instead of the newest revision per file")
}

func printRevision(ctx context.Context, store artifactrepo.Store, w io.Writer, runID string, iteration int, path string) error {
	rev, err := store.Load(ctx, runID, iteration, path)
	if err != nil {
		return err
	}
	_, err = w.Write(rev.Content)
	return err
}

// listRevisions prints one "iteration kind size path" line per revision.
func listRevisions(ctx context.Context, store artifactrepo.Store, w io.Writer, q artifactrepo.Query, history bool) error {
	es, err := store.List(ctx, q)
	if err != nil {
		return err
	}
	if !history && q.Iteration == 0 {
		es = artifactrepo.Latest(es)
	}
	for _, e := range es {
		kind := e.Kind
		if kind == "" {
			kind = "-"
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", e.Iteration, kind, e.Size, e.Path); err != nil {
			return err
		}
	}
	return nil
}
