package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/engine"
	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/kernel/sdfx"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

type nodeReport struct {
	Name            string        `json:"name"`
	ID              graph.NodeID  `json:"id"`
	Representations []document.ID `json:"representations"`
	Error           string        `json:"error,omitempty"`
}

type runReport struct {
	Document string       `json:"document"`
	Nodes    []nodeReport `json:"nodes"`
	Removed  []string     `json:"removed,omitempty"`
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Evaluate a script and update the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args[0])
		},
	}
	cmd.Flags().Bool("refresh", false, "Rebuild every node's representations")
	cmd.Flags().Bool("keep-stale", false, "Keep outputs of nodes no longer in the script")
	cmd.Flags().Bool("metrics", false, "Print evaluation counters to stderr")
	return cmd
}

func runRun(cmd *cobra.Command, opts *options, path string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	keepStale, _ := cmd.Flags().GetBool("keep-stale")
	showMetrics, _ := cmd.Flags().GetBool("metrics")
	ctx := cmd.Context()

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	s, err := openSession(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	eng := engine.NewEngine(sdfx.New(s.cfg.MeshCells))
	eng.SetTimeout(s.cfg.EvalTimeout)
	script, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, e)
		}
		return fmt.Errorf("evaluate %s: %d errors", path, len(evalErrs))
	}

	tree := graph.New()
	for _, spec := range script.Nodes {
		n := s.node(spec.ID, spec.Config)
		if refresh {
			n.Refresh()
		}
		if err := tree.Add(spec.ID, spec.Name, n); err != nil {
			return err
		}
		if err := tree.SetInput(spec.ID, reprnode.SocketObjects, spec.Objects); err != nil {
			return err
		}
	}

	failed := tree.Update(ctx)
	for _, err := range failed {
		s.log.Error("node evaluation failed", "err", err)
	}

	report := runReport{Document: s.cfg.DocumentPath}
	if !keepStale {
		for _, id := range s.reg.Nodes() {
			if tree.Get(id) != nil {
				continue
			}
			s.node(id, reprnode.Config{}).Free(ctx)
			report.Removed = append(report.Removed, string(id))
		}
	}
	for _, st := range tree.Ordered() {
		nr := nodeReport{
			Name:            st.Name,
			ID:              st.ID,
			Representations: s.reg.IDs(st.ID, reprnode.Representations),
		}
		if st.Err != nil {
			nr.Error = st.Err.Error()
		}
		report.Nodes = append(report.Nodes, nr)
	}

	if err := s.save(ctx); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if showMetrics {
		if err := printMetrics(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if err := printRunReport(cmd.OutOrStdout(), opts.format, report); err != nil {
		return err
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

func printRunReport(w io.Writer, format string, r runReport) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	for _, n := range r.Nodes {
		status := "ok"
		if n.Error != "" {
			status = "error: " + n.Error
		}
		fmt.Fprintf(w, "%-20s %s %d representations %s\n", n.Name, n.ID.Short(), len(n.Representations), status)
	}
	for _, id := range r.Removed {
		fmt.Fprintf(w, "removed %s\n", graph.NodeID(id).Short())
	}
	return nil
}

// printMetrics writes the bimrepr counters from the default registry.
func printMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "bimrepr_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
	return nil
}
