package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

func newRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <node-name|node-id>...",
		Short: "Tear down nodes and remove their representations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ids := make([]graph.NodeID, 0, len(args))
			for _, arg := range args {
				id := resolveNodeID(arg)
				if !s.reg.Has(id) {
					return fmt.Errorf("no node %q in %s", arg, s.cfg.DocumentPath)
				}
				ids = append(ids, id)
			}
			for _, id := range ids {
				s.node(id, reprnode.Config{}).Free(ctx)
			}
			if err := s.save(ctx); err != nil {
				return fmt.Errorf("save document: %w", err)
			}

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "removed": ids})
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id.Short())
			}
			return nil
		},
	}
}

// resolveNodeID accepts a full node id or a node name.
func resolveNodeID(arg string) graph.NodeID {
	if _, err := uuid.Parse(arg); err == nil {
		return graph.NodeID(arg)
	}
	return graph.NewNodeID(arg)
}
