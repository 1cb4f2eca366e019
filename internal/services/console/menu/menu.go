// Package menu holds the console's navigation tree and trims it to what an
// operator's roles may see.
package menu

// SuperRole sees every node regardless of its permissions.
const SuperRole = "admin"

// Node is one entry of the navigation tree. A node whose Children is
// non-nil is a branch, even when the slice is empty; Permissions lists the
// roles allowed to open a leaf and is empty for public leaves.
type Node struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Icon        string   `json:"icon,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Children    []Node   `json:"children,omitempty"`
}

// IsBranch reports whether n was declared with a children list. A branch
// left with no visible children is dropped by Filter.
func (n Node) IsBranch() bool {
	return n.Children != nil
}

// Filter returns the part of tree visible to roles. Leaves survive when
// public or when a permission matches a role. Branches survive only with at
// least one surviving child, whatever their own permissions say. Order is
// preserved and tree is not modified.
func Filter(tree []Node, roles []string) []Node {
	granted := make(map[string]bool, len(roles))
	for _, role := range roles {
		granted[role] = true
	}
	if granted[SuperRole] {
		return cloneAll(tree)
	}
	return filter(tree, granted)
}

func filter(nodes []Node, granted map[string]bool) []Node {
	out := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		if node.IsBranch() {
			children := filter(node.Children, granted)
			if len(children) == 0 {
				continue
			}
			kept := clone(node)
			kept.Children = children
			out = append(out, kept)
			continue
		}
		if allowed(node, granted) {
			out = append(out, clone(node))
		}
	}
	return out
}

func allowed(leaf Node, granted map[string]bool) bool {
	if len(leaf.Permissions) == 0 {
		return true
	}
	for _, permission := range leaf.Permissions {
		if granted[permission] {
			return true
		}
	}
	return false
}

// Visible reports whether the node at key survives Filter for roles.
func Visible(tree []Node, roles []string, key string) bool {
	return find(Filter(tree, roles), key)
}

func find(nodes []Node, key string) bool {
	for _, node := range nodes {
		if node.Key == key || find(node.Children, key) {
			return true
		}
	}
	return false
}

func clone(n Node) Node {
	n.Permissions = append([]string(nil), n.Permissions...)
	n.Children = cloneAll(n.Children)
	return n
}

func cloneAll(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, node := range nodes {
		out[i] = clone(node)
	}
	return out
}
