// Package templates renders the console's HTML screens.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/louisbranch/groupbuy-console/internal/services/console/flash"
	"github.com/louisbranch/groupbuy-console/internal/services/console/menu"
	"github.com/louisbranch/groupbuy-console/internal/services/console/routepath"
)

// Viewer is the signed-in operator as shown in the shell.
type Viewer struct {
	DisplayName string
	Role        string
}

// Shell is the chrome around protected screens.
type Shell struct {
	Title   string
	Viewer  *Viewer
	Menu    []menu.Node
	Active  string
	Notices []flash.Notice
}

// Layout wraps the children component in the full HTML document.
func Layout(shell Shell) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw("<!DOCTYPE html>")
		h.open("html", "lang", "en")
		h.open("head")
		h.raw(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.element("title", pageTitle(shell.Title))
		h.raw(`<script src="https://unpkg.com/htmx.org@2.0.4" defer></script>`)
		h.close("head")
		h.open("body", "class", "console")
		if shell.Viewer != nil {
			renderTopBar(h, *shell.Viewer)
			h.open("div", "class", "console-body")
			renderSideMenu(h, shell.Menu, shell.Active)
			h.open("main", "id", "main", "class", "console-main")
		} else {
			h.open("main", "id", "main", "class", "console-public")
		}
		renderNotices(h, shell.Notices)
		if h.err != nil {
			return h.err
		}
		if err := templ.GetChildren(ctx).Render(ctx, w); err != nil {
			return err
		}
		h.close("main")
		if shell.Viewer != nil {
			h.close("div")
		}
		h.close("body")
		h.close("html")
		return h.err
	})
}

// Fragment renders only the main content for HTMX swaps.
func Fragment(notices []flash.Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		renderNotices(h, notices)
		if h.err != nil {
			return h.err
		}
		return templ.GetChildren(ctx).Render(ctx, w)
	})
}

func pageTitle(title string) string {
	if title == "" {
		return "Group-buy Console"
	}
	return title + " | Group-buy Console"
}

func renderTopBar(h *html, viewer Viewer) {
	h.open("header", "class", "console-topbar")
	h.element("a", "Group-buy Console", "href", routepath.Root, "class", "brand")
	h.open("span", "class", "viewer")
	h.text(viewer.DisplayName)
	if viewer.Role != "" {
		h.element("small", viewer.Role, "class", "role")
	}
	h.close("span")
	h.open("form", "method", "post", "action", routepath.Logout)
	h.element("button", "Sign out", "type", "submit")
	h.close("form")
	h.close("header")
}

func renderSideMenu(h *html, nodes []menu.Node, active string) {
	h.open("nav", "class", "console-menu")
	renderMenuLevel(h, nodes, active)
	h.close("nav")
}

func renderMenuLevel(h *html, nodes []menu.Node, active string) {
	h.open("ul")
	for _, node := range nodes {
		class := "menu-item"
		if node.Key == active {
			class += " active"
		}
		h.open("li", "class", class)
		if node.IsBranch() {
			h.element("span", node.Title, "class", "menu-branch", "data-icon", node.Icon)
			renderMenuLevel(h, node.Children, active)
		} else {
			h.element("a", node.Title, "href", node.Key, "data-icon", node.Icon)
		}
		h.close("li")
	}
	h.close("ul")
}

func renderNotices(h *html, notices []flash.Notice) {
	for _, notice := range notices {
		h.element("div", notice.Text, "class", "notice notice-"+string(notice.Kind), "role", "status")
	}
}
