package reprnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/bimrepr/pkg/document"
)

// dispose removes every representation recorded for the node and clears
// the category. Ids that are already gone from the document are skipped.
// Ids whose removal fails stay registered.
func (n *Node) dispose(doc Document, cat Category) error {
	var errs []error
	for _, id := range n.reg.IDs(n.id, cat) {
		if err := n.removeRepresentation(doc, id); err != nil {
			errs = append(errs, err)
			continue
		}
		n.reg.Remove(n.id, cat, id)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	n.reg.Drop(n.id, cat)
	return nil
}

func (n *Node) removeRepresentation(doc Document, id document.ID) error {
	e, err := doc.ByID(id)
	if errors.Is(err, document.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	rep, ok := e.(*document.Representation)
	if !ok {
		return fmt.Errorf("recorded representation #%d is a %s", id, e.Class())
	}
	err = doc.RemoveRepresentation(rep)
	if errors.Is(err, document.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	EntitiesRemovedTotal.WithLabelValues(kindRepresentation).Inc()
	return nil
}

// contextReleaser is implemented by documents that tag contexts with the
// node that created them.
type contextReleaser interface {
	ReleaseContext(c *document.Context) error
}

var _ contextReleaser = (*document.Document)(nil)

// disposeContexts removes the node's contexts that nothing references.
// Referenced contexts are left in place and lose their owner tag, so a
// reload does not bring the departed node back.
func (n *Node) disposeContexts(doc Document) error {
	var errs []error
	for _, id := range n.reg.IDs(n.id, Contexts) {
		e, err := doc.ByID(id)
		if errors.Is(err, document.ErrNotFound) {
			n.reg.Remove(n.id, Contexts, id)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c, ok := e.(*document.Context)
		if !ok {
			errs = append(errs, fmt.Errorf("recorded context #%d is a %s", id, e.Class()))
			continue
		}
		if refs := doc.InverseReferences(id); len(refs) > 0 {
			n.log.Debug("context still referenced, keeping it", "context", id, "referrers", len(refs))
			if r, ok := doc.(contextReleaser); ok {
				if err := r.ReleaseContext(c); err != nil && !errors.Is(err, document.ErrNotFound) {
					errs = append(errs, err)
				}
			}
			continue
		}
		if err := doc.RemoveContext(c); err != nil && !errors.Is(err, document.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		n.reg.Remove(n.id, Contexts, id)
		EntitiesRemovedTotal.WithLabelValues(kindContext).Inc()
	}
	return errors.Join(errs...)
}

// Free implements graph.Node. It removes the node's representations and
// its unreferenced contexts, then forgets the node's registry entry and
// input snapshot. Missing entities are ignored and other failures are
// logged, so Free always completes.
func (n *Node) Free(ctx context.Context) {
	defer n.reg.Forget(n.id)
	if !n.reg.Has(n.id) {
		return
	}
	doc, err := n.source(ctx)
	if err != nil {
		n.log.Error("teardown: get document", "err", err)
		return
	}
	if err := n.dispose(doc, Representations); err != nil {
		n.log.Error("teardown: remove representations", "err", err)
	}
	if err := n.disposeContexts(doc); err != nil {
		n.log.Error("teardown: remove contexts", "err", err)
	}
	n.log.Info("node freed")
}
