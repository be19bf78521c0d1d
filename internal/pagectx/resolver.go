// Package pagectx maps a URL path to the site section it belongs to.
package pagectx

import (
	"strings"

	"pyx-backend/internal/model"
)

const (
	Home          model.PageID = "home"
	AgentBuilder  model.PageID = "agent-builder"
	Marketplace   model.PageID = "marketplace"
	Analytics     model.PageID = "analytics"
	ActiveAgents  model.PageID = "active-agents"
	Dashboard     model.PageID = "dashboard"
	Careers       model.PageID = "careers"
	Blog          model.PageID = "blog"
	Webinars      model.PageID = "webinars"
	HelpCenter    model.PageID = "help-center"
	Community     model.PageID = "community"
	Support       model.PageID = "support"
	Pricing       model.PageID = "pricing"
	Documentation model.PageID = "documentation"
	APIDocs       model.PageID = "api-docs"
	Default       model.PageID = "default"
)

type pattern struct {
	path  string
	exact bool
	page  model.PageID
}

// patterns is scanned in order; the first match wins.
var patterns = []pattern{
	{path: "/", exact: true, page: Home},
	{path: "/agent-builder", page: AgentBuilder},
	{path: "/marketplace", page: Marketplace},
	{path: "/analytics", page: Analytics},
	{path: "/active-agents", page: ActiveAgents},
	{path: "/dashboard", page: Dashboard},
	{path: "/careers", page: Careers},
	{path: "/blog", page: Blog},
	{path: "/webinars", page: Webinars},
	{path: "/help", page: HelpCenter},
	{path: "/community", page: Community},
	{path: "/support", page: Support},
	{path: "/pricing", page: Pricing},
	{path: "/docs", page: Documentation},
	{path: "/api", page: APIDocs},
}

// Resolve never fails: unknown paths map to Default.
func Resolve(path string) model.PageID {
	p := normalize(path)
	for _, pt := range patterns {
		if pt.exact {
			if p == pt.path {
				return pt.page
			}
			continue
		}
		if strings.HasPrefix(p, pt.path) {
			return pt.page
		}
	}
	return Default
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
