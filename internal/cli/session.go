package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/chazu/bimrepr/internal/config"
	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

// session is an opened document with its output registry rebuilt from the
// owner tags of the stored entities and its input snapshots restored.
type session struct {
	cfg    config.Config
	log    *slog.Logger
	handle *document.Handle
	doc    *document.Document
	reg    *reprnode.Registry
}

func openSession(ctx context.Context, opts *options, logOut io.Writer) (*session, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg, logOut)

	h := document.NewHandle(cfg.DocumentPath)
	doc, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	reg := reprnode.NewRegistry()
	restored := reprnode.Reconcile(doc, reg)
	snaps, err := reprnode.LoadSnapshots(doc, reg)
	if err != nil {
		return nil, err
	}
	log.Debug("opened document", "path", cfg.DocumentPath, "entities", doc.Len(), "restored", restored, "snapshots", snaps)

	return &session{cfg: cfg, log: log, handle: h, doc: doc, reg: reg}, nil
}

// node creates a representation node bound to the session document.
func (s *session) node(id graph.NodeID, props reprnode.Config) *reprnode.Node {
	return reprnode.New(id, s.reg, reprnode.FromHandle(s.handle), reprnode.Options{
		Config:            props.WithDefaults(s.cfg.Defaults),
		RollbackOnFailure: s.cfg.RollbackOnFailure,
		Logger:            s.log,
	})
}

// save persists the document together with the node input snapshots.
func (s *session) save(ctx context.Context) error {
	if err := reprnode.SaveSnapshots(s.reg, s.doc); err != nil {
		return err
	}
	return s.handle.Save(ctx)
}
