package reprnode

import (
	"context"

	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/kernel"
)

// materialize creates one representation per mesh object under c and
// records each id as soon as it exists. On failure the representations
// already created stay registered unless the node rolls back.
func (n *Node) materialize(ctx context.Context, doc Document, c *document.Context, objects []kernel.Object) ([][]*document.Representation, error) {
	out := make([][]*document.Representation, 0, len(objects))
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, n.abort(doc, out, err)
		}
		rep, err := doc.AddRepresentation(obj, c, string(n.id))
		if rep == nil {
			return nil, n.abort(doc, out, &RepresentationCreationError{Index: i, Object: obj.Name, Err: err})
		}
		n.reg.Append(n.id, Representations, rep.ID)
		EntitiesCreatedTotal.WithLabelValues(kindRepresentation).Inc()
		out = append(out, []*document.Representation{rep})
	}
	n.log.Info("materialized representations", "count", len(out), "context", c.ID)
	return out, nil
}

// abort handles a failed materialization. Without rollback the partial
// result is left in place.
func (n *Node) abort(doc Document, created [][]*document.Representation, cause error) error {
	if !n.rollback || len(created) == 0 {
		if len(created) > 0 {
			n.log.Warn("materialization failed, keeping partial result", "created", len(created), "err", cause)
		}
		return cause
	}
	for _, reps := range created {
		for _, rep := range reps {
			if err := doc.RemoveRepresentation(rep); err != nil {
				n.log.Error("rollback failed", "representation", rep.ID, "err", err)
				continue
			}
			n.reg.Remove(n.id, Representations, rep.ID)
			EntitiesRemovedTotal.WithLabelValues(kindRepresentation).Inc()
		}
	}
	if len(n.reg.IDs(n.id, Representations)) == 0 {
		n.reg.Drop(n.id, Representations)
	}
	n.log.Warn("materialization failed, rolled back", "removed", len(created), "err", cause)
	return cause
}
