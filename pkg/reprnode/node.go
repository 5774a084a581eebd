// Package reprnode implements the mesh-to-representation node: it turns
// mesh objects into shape representations of the shared document and keeps
// them in step with the node's inputs and lifetime.
//
// Every evaluation either reuses the representations recorded for the node,
// or disposes of them and materializes new ones. Which path runs depends on
// whether the node has recorded representations, whether any structured
// input differs from the previous evaluation, and the one-shot refresh flag.
package reprnode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/kernel"
)

// Document is the subset of the document model the node calls into.
type Document interface {
	AddRepresentation(obj kernel.Object, c *document.Context, owner string) (*document.Representation, error)
	RemoveRepresentation(r *document.Representation) error
	AddContext(p document.ContextParams) (*document.Context, error)
	RemoveContext(c *document.Context) error
	GetContext(contextType, identifier, targetView string) *document.Context
	InverseReferences(id document.ID) []document.ID
	ByID(id document.ID) (document.Entity, error)
}

var _ Document = (*document.Document)(nil)

// DocumentSource yields the shared document, creating it on first use.
type DocumentSource func(ctx context.Context) (Document, error)

// FromHandle adapts a document handle into a DocumentSource.
func FromHandle(h *document.Handle) DocumentSource {
	return func(ctx context.Context) (Document, error) {
		return h.Get(ctx)
	}
}

// Options configures a Node.
type Options struct {
	// Config holds the enumeration properties used when the matching input
	// sockets carry no value. Zero fields take DefaultConfig values.
	Config Config

	// RollbackOnFailure removes representations created earlier in a
	// failing materialization instead of leaving them registered.
	RollbackOnFailure bool

	Logger *slog.Logger
}

// Node converts mesh objects into shape representations.
type Node struct {
	id       graph.NodeID
	reg      *Registry
	source   DocumentSource
	props    Config
	rollback bool
	refresh  bool
	log      *slog.Logger
}

var _ graph.Node = (*Node)(nil)

// New creates a node with the given identity. The registry and document
// source are shared by all nodes working on the same document.
func New(id graph.NodeID, reg *Registry, source DocumentSource, opts Options) *Node {
	props := opts.Config.WithDefaults(DefaultConfig())
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		id:       id,
		reg:      reg,
		source:   source,
		props:    props,
		rollback: opts.RollbackOnFailure,
		log:      logger.With("node", id.Short()),
	}
}

// ID returns the node identity.
func (n *Node) ID() graph.NodeID { return n.id }

// Config returns the node's enumeration properties.
func (n *Node) Config() Config { return n.props }

// SetConfig replaces the node's enumeration properties. The change is seen
// by the change detector on the next evaluation.
func (n *Node) SetConfig(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	n.props = c
	return nil
}

// Refresh forces the next evaluation to rebuild the representations.
func (n *Node) Refresh() { n.refresh = true }

// InputNames implements graph.Node.
func (n *Node) InputNames() []string {
	return append([]string(nil), inputNames...)
}

// Process implements graph.Node. It publishes the document on "file" and
// one singleton slice per mesh object on "Representations".
func (n *Node) Process(ctx context.Context, in graph.Inputs) (graph.Outputs, error) {
	objects, err := objectsFrom(in[SocketObjects])
	if err != nil {
		EvaluationsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, err
	}
	if len(objects) == 0 {
		EvaluationsTotal.WithLabelValues(outcomeSkipped).Inc()
		n.log.Debug("no mesh objects, keeping previous outputs")
		return nil, nil
	}

	inputs := effectiveInputs(in, n.props, objects)
	cfg, err := resolveConfig(inputs)
	if err != nil {
		EvaluationsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, err
	}
	if cfg.Paradigm == ParadigmExtrusion {
		EvaluationsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("%s: %w", cfg.Paradigm, ErrUnimplementedParadigm)
	}

	changed := n.reg.DetectChange(n.id, inputs)
	if n.refresh {
		changed = true
		n.refresh = false
	}

	doc, err := n.source(ctx)
	if err != nil {
		EvaluationsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("get document: %w", err)
	}

	var (
		reps    [][]*document.Representation
		outcome string
	)
	switch {
	case !n.reg.HasCategory(n.id, Representations):
		outcome = outcomeCreated
		reps, err = n.build(ctx, doc, cfg, objects)
	case changed:
		outcome = outcomeRebuilt
		if err = n.dispose(doc, Representations); err == nil {
			reps, err = n.build(ctx, doc, cfg, objects)
		}
	default:
		outcome = outcomeCached
		reps, err = n.existing(doc)
	}
	if err != nil {
		EvaluationsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, err
	}

	EvaluationsTotal.WithLabelValues(outcome).Inc()
	n.log.Debug("evaluated", "outcome", outcome, "representations", len(reps))
	return graph.Outputs{
		OutputFile:            doc,
		OutputRepresentations: reps,
	}, nil
}

// build resolves the context and materializes every object.
func (n *Node) build(ctx context.Context, doc Document, cfg Config, objects []kernel.Object) ([][]*document.Representation, error) {
	c, err := n.resolveContext(doc, cfg)
	if err != nil {
		return nil, err
	}
	return n.materialize(ctx, doc, c, objects)
}

// existing looks up the recorded representations without mutating the
// document.
func (n *Node) existing(doc Document) ([][]*document.Representation, error) {
	ids := n.reg.IDs(n.id, Representations)
	out := make([][]*document.Representation, 0, len(ids))
	for _, id := range ids {
		e, err := doc.ByID(id)
		if err != nil {
			return nil, fmt.Errorf("recorded representation: %w", err)
		}
		rep, ok := e.(*document.Representation)
		if !ok {
			return nil, fmt.Errorf("recorded representation #%d is a %s", id, e.Class())
		}
		out = append(out, []*document.Representation{rep})
	}
	return out, nil
}
