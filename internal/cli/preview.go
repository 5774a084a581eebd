package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/bimrepr/pkg/engine"
	"github.com/chazu/bimrepr/pkg/kernel/sdfx"
)

// colorPalette assigns distinct colors to previewed objects.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// meshData is the viewer-facing mesh format.
type meshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Node     string    `json:"node"`
	Object   string    `json:"object"`
	Color    string    `json:"color"`
}

type evalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// previewResult is what a viewer needs to draw a script without touching
// the document.
type previewResult struct {
	Meshes []meshData      `json:"meshes"`
	Errors []evalErrorData `json:"errors"`
}

func newPreviewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <script>",
		Short: "Evaluate a script and print its meshes without updating the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			eng := engine.NewEngine(sdfx.New(cfg.MeshCells))
			eng.SetTimeout(cfg.EvalTimeout)
			return printPreview(cmd.OutOrStdout(), opts.format, preview(eng, string(src)))
		},
	}
}

// preview evaluates source and flattens every node's objects into colored
// meshes. Evaluation failures are reported in the result, not returned.
func preview(eng *engine.Engine, source string) previewResult {
	result := previewResult{
		Meshes: []meshData{},
		Errors: []evalErrorData{},
	}

	script, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		result.Errors = append(result.Errors, evalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, evalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	i := 0
	for _, spec := range script.Nodes {
		for _, obj := range spec.Objects {
			if obj.Mesh.IsEmpty() {
				continue
			}
			result.Meshes = append(result.Meshes, meshData{
				Vertices: obj.Mesh.Vertices,
				Normals:  obj.Mesh.Normals,
				Indices:  obj.Mesh.Indices,
				Node:     spec.Name,
				Object:   obj.Name,
				Color:    colorPalette[i%len(colorPalette)],
			})
			i++
		}
	}
	return result
}

func printPreview(w io.Writer, format string, r previewResult) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Fprintf(w, "error: %s\n", e.Message)
		}
	}
	for _, m := range r.Meshes {
		fmt.Fprintf(w, "%s/%s %s: %d vertices, %d triangles\n",
			m.Node, m.Object, m.Color, len(m.Vertices)/3, len(m.Indices)/3)
	}
	return nil
}
