package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

type entityReport struct {
	ID    document.ID `json:"id"`
	Class string      `json:"class"`
	Owner string      `json:"owner,omitempty"`
	Info  string      `json:"info"`
}

type ownerReport struct {
	ID              graph.NodeID  `json:"id"`
	Representations []document.ID `json:"representations,omitempty"`
	Contexts        []document.ID `json:"contexts,omitempty"`
}

type inspectReport struct {
	Document string         `json:"document"`
	Schema   string         `json:"schema"`
	Entities []entityReport `json:"entities"`
	Nodes    []ownerReport  `json:"nodes"`
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List the entities of the document and the nodes that own them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printInspect(cmd.OutOrStdout(), opts.format, buildInspect(s))
		},
	}
}

func buildInspect(s *session) inspectReport {
	r := inspectReport{Document: s.cfg.DocumentPath, Schema: s.doc.Schema()}
	for _, e := range s.doc.Entities() {
		er := entityReport{ID: e.EntityID(), Class: e.Class(), Info: fmt.Sprint(e)}
		switch t := e.(type) {
		case *document.Representation:
			er.Owner = t.Owner
		case *document.Context:
			er.Owner = t.Owner
		}
		r.Entities = append(r.Entities, er)
	}
	for _, id := range s.reg.Nodes() {
		r.Nodes = append(r.Nodes, ownerReport{
			ID:              id,
			Representations: s.reg.IDs(id, reprnode.Representations),
			Contexts:        s.reg.IDs(id, reprnode.Contexts),
		})
	}
	return r
}

func printInspect(w io.Writer, format string, r inspectReport) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "%s (%s), %d entities\n", r.Document, r.Schema, len(r.Entities))
	for _, e := range r.Entities {
		owner := ""
		if e.Owner != "" {
			owner = " owner=" + graph.NodeID(e.Owner).Short()
		}
		fmt.Fprintf(w, "  %s%s\n", e.Info, owner)
	}
	for _, n := range r.Nodes {
		fmt.Fprintf(w, "node %s: %d representations, %d contexts\n", n.ID.Short(), len(n.Representations), len(n.Contexts))
	}
	return nil
}
