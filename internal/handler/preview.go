package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/modmirror/internal/mirror"
)

// TreeNode is one entry of a dry-run preview
type TreeNode struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Path        string      `json:"path,omitempty"`
	Disposition string      `json:"disposition,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Children    []*TreeNode `json:"children,omitempty"`
}

// PreviewHandler serves dry runs
type PreviewHandler struct {
	m *mirror.Mirror
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(m *mirror.Mirror) *PreviewHandler {
	return &PreviewHandler{m: m}
}

// GetPreview returns the decision tree of a dry run. With ?flat=1 the
// decisions are returned as a list in visit order.
func (h *PreviewHandler) GetPreview(c *gin.Context) {
	plan, err := h.m.Plan()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	if c.Query("flat") != "" {
		c.JSON(http.StatusOK, plan)
		return
	}
	c.JSON(http.StatusOK, buildTree(h.m.Config().DirName, plan))
}

// buildTree nests plan entries under root. Plan entries arrive parents
// first, so every parent node exists before its children.
func buildTree(root string, plan []mirror.PlanEntry) *TreeNode {
	top := &TreeNode{Name: root, Type: "directory", Path: root}
	nodes := map[string]*TreeNode{root: top}

	for _, e := range plan {
		node := &TreeNode{
			Name:        e.Path[strings.LastIndex(e.Path, "/")+1:],
			Type:        "file",
			Path:        e.Path,
			Disposition: e.Disposition,
			Reason:      e.Reason,
		}
		if e.Dir {
			node.Type = "directory"
		}
		parentPath := root
		if i := strings.LastIndex(e.Path, "/"); i >= 0 {
			parentPath = e.Path[:i]
		}
		parent, ok := nodes[parentPath]
		if !ok {
			parent = top
		}
		parent.Children = append(parent.Children, node)
		if e.Dir {
			nodes[e.Path] = node
		}
	}
	return top
}
