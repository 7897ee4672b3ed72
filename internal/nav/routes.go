package nav

// Route names.
const (
	Login     = "login"
	Dashboard = "dashboard"
	Logs      = "logs"
)

// Route is one navigable view.
type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
}

// Table is a static route table.
type Table []Route

// DefaultTable is the route table of the dashboard.
var DefaultTable = Table{
	{Name: Login, Path: "/"},
	{Name: Dashboard, Path: "/dashboard", RequiresAuth: true},
	{Name: Logs, Path: "/logs", RequiresAuth: true},
}

// Lookup finds a route by name or path.
func (t Table) Lookup(target string) (Route, bool) {
	for _, r := range t {
		if r.Name == target || r.Path == target {
			return r, true
		}
	}
	return Route{}, false
}
