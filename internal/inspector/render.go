package inspector

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/emicklei/dot"

	"github.com/lindeneg/sqlite-forensics/internal/sqlitefmt"
)

// RenderBTree builds a DOT graph of a traversed B-tree: one node per page,
// labeled with its page number and kind, edges following the same
// left-to-right child order Walk produced. A node whose Err is set is
// drawn with a red border so a corrupt branch stands out without having
// to read error text.
func RenderBTree(root *sqlitefmt.TreeNode) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "TB")
	AddBTreeSubtree(g, root)
	return g
}

// AddBTreeSubtree adds root's subtree to an existing graph, letting the
// caller combine several roots (e.g. every master-table object) into one
// picture. Each call uses its own visited set, so the same page number
// reachable from two different roots is drawn as two distinct nodes.
func AddBTreeSubtree(g *dot.Graph, root *sqlitefmt.TreeNode) {
	visited := make(map[*sqlitefmt.TreeNode]dot.Node)
	addBTreeNode(g, root, visited)
}

func addBTreeNode(g *dot.Graph, n *sqlitefmt.TreeNode, visited map[*sqlitefmt.TreeNode]dot.Node) dot.Node {
	if gn, ok := visited[n]; ok {
		return gn
	}
	label := fmt.Sprintf("page %d\n%s", n.Page, n.Kind)
	gn := g.Node(fmt.Sprintf("p%d_%p", n.Page, n)).Label(label)
	if n.Err != nil {
		gn = gn.Attr("color", "red").Attr("label", label+"\nERROR: "+n.Err.Error())
	}
	visited[n] = gn
	for _, child := range n.Children {
		cn := addBTreeNode(g, child, visited)
		g.Edge(gn, cn)
	}
	return gn
}

// RenderFreelist builds a DOT graph of a freelist chain: one node per
// trunk, one node per leaf, trunk-to-trunk and trunk-to-leaf edges in
// the order WalkFreelist produced them.
func RenderFreelist(chain *sqlitefmt.FreelistChain) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	leafNodes := make(map[uint32]dot.Node)
	leaf := func(n uint32) dot.Node {
		if gn, ok := leafNodes[n]; ok {
			return gn
		}
		gn := g.Node(fmt.Sprintf("leaf%d", n)).Label(fmt.Sprintf("leaf %d", n)).Attr("shape", "box")
		leafNodes[n] = gn
		return gn
	}

	var prev dot.Node
	havePrev := false
	for _, t := range chain.Trunks {
		label := fmt.Sprintf("trunk %d\n%d leaves", t.Page, len(t.LeafPages))
		if t.Implausible {
			label += "\nIMPLAUSIBLE"
		}
		tn := g.Node(fmt.Sprintf("trunk%d", t.Page)).Label(label)
		if t.Implausible {
			tn = tn.Attr("color", "red")
		}
		if havePrev {
			g.Edge(prev, tn)
		}
		for _, l := range t.LeafPages {
			g.Edge(tn, leaf(l))
		}
		prev = tn
		havePrev = true
	}
	return g
}

// WriteGraph writes g's DOT source to path and, best-effort, runs xdot on
// it if one is installed and waits for it to exit, so interactive use
// shows a picture rather than raw DOT text. Failure to launch a viewer is
// not an error: the .gv file was still written and can be rendered by hand.
func WriteGraph(g *dot.Graph, path string) error {
	if err := os.WriteFile(path, []byte(g.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	launchViewer(path)
	return nil
}

func launchViewer(path string) {
	if viewer, err := exec.LookPath("xdot"); err == nil {
		_ = exec.Command(viewer, path).Run()
	}
}
