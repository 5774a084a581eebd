// Package graph is a minimal node-graph host. It owns node identities,
// stores the values wired into each node's input sockets, evaluates nodes
// on Update and calls their teardown hook on Remove.
package graph
