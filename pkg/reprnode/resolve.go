package reprnode

import (
	"fmt"

	"github.com/chazu/bimrepr/pkg/document"
)

// resolveContext returns the context for cfg's (type, identifier, view)
// triple. An existing context is reused and not registered. A missing one
// is created beneath the root context of its type, and only the created
// child is registered under the node's Contexts.
func (n *Node) resolveContext(doc Document, cfg Config) (*document.Context, error) {
	if c := doc.GetContext(cfg.ContextType, cfg.ContextIdentifier, cfg.TargetView); c != nil {
		return c, nil
	}

	parent := doc.GetContext(cfg.ContextType, "", "")
	if parent == nil {
		p, err := doc.AddContext(document.ContextParams{ContextType: cfg.ContextType})
		if err != nil {
			return nil, fmt.Errorf("create %s context: %w", cfg.ContextType, err)
		}
		EntitiesCreatedTotal.WithLabelValues(kindContext).Inc()
		parent = p
	}

	c, err := doc.AddContext(document.ContextParams{
		ContextType: cfg.ContextType,
		Identifier:  cfg.ContextIdentifier,
		TargetView:  cfg.TargetView,
		Parent:      parent,
		Owner:       string(n.id),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s/%s/%s context: %w", cfg.ContextType, cfg.ContextIdentifier, cfg.TargetView, err)
	}
	n.reg.Append(n.id, Contexts, c.ID)
	EntitiesCreatedTotal.WithLabelValues(kindContext).Inc()
	n.log.Debug("created context", "context", c.ID, "parent", parent.ID)
	return c, nil
}
