package guard

import (
	"sort"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
)

// Route — охраняемый экран и допустимые роли. Пустой Roles — любая роль.
type Route struct {
	Path  string
	Title string
	Roles []string
}

// DefaultRoutes — экраны консоли AMS.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/dashboard", Title: "Dashboard"},
		{Path: "/attendance", Title: "Attendance"},
		{Path: "/hrm", Title: "Human resources", Roles: []string{"ADMIN", "HR", "MANAGER"}},
		{Path: "/payroll", Title: "Payroll", Roles: []string{"ADMIN", "HR"}},
		{Path: "/reports", Title: "Reports", Roles: []string{"ADMIN", "HR", "MANAGER"}},
		{Path: "/admin", Title: "Administration", Roles: []string{"ADMIN"}},
	}
}

// RoutesFromConfig переводит маршруты из конфигурации; пустой список — DefaultRoutes.
func RoutesFromConfig(rc []config.RouteConfig) []Route {
	if len(rc) == 0 {
		return DefaultRoutes()
	}

	out := make([]Route, 0, len(rc))
	for _, r := range rc {
		title := strings.TrimPrefix(r.Path, "/")
		out = append(out, Route{Path: r.Path, Title: title, Roles: r.Roles})
	}

	return out
}

// RouteTable ищет маршрут по самому длинному префиксу на границе сегмента:
// /hrm/employees/7 попадает в /hrm, а /hrmx — нет.
type RouteTable struct {
	routes []Route
}

func NewRouteTable(routes []Route) *RouteTable {
	rs := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Path = "/" + strings.Trim(r.Path, "/")
		rs = append(rs, r)
	}

	sort.SliceStable(rs, func(i, j int) bool { return len(rs[i].Path) > len(rs[j].Path) })

	return &RouteTable{routes: rs}
}

func (t *RouteTable) Lookup(path string) (Route, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	for _, r := range t.routes {
		if r.Path == "/" || path == r.Path || strings.HasPrefix(path, r.Path+"/") {
			return r, true
		}
	}

	return Route{}, false
}

// Routes — маршруты в порядке поиска.
func (t *RouteTable) Routes() []Route { return append([]Route(nil), t.routes...) }
