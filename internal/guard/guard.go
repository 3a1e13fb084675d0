// guard — предикаты допуска на экран: сначала AccessGuard (есть ли сессия),
// затем RoleGuard (подходит ли роль).
package guard

import (
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
)

// Session — то, что нужно охране от менеджера сессии.
type Session interface {
	IsAuthenticated() bool
	Role() string
}

// Decision — результат проверки. При отказе Redirect указывает, куда вести.
type Decision struct {
	Allowed  bool
	Redirect navigation.Target
	Reason   string
}

func allow() Decision { return Decision{Allowed: true} }

// Причины отказа.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonRoleMismatch    = "role_mismatch"
	ReasonNoRole          = "no_role"
)

// AccessGuard пускает только при действующей сессии. Отказ ведёт на экран входа
// с исходным адресом в параметре ReturnParam.
type AccessGuard struct {
	Session     Session
	LoginPath   string
	ReturnParam string
}

func (g AccessGuard) Check(requested string) Decision {
	if g.Session.IsAuthenticated() {
		return allow()
	}

	to := navigation.To(g.LoginPath)
	if g.ReturnParam != "" && requested != "" {
		to = to.With(g.ReturnParam, requested)
	}

	return Decision{Redirect: to, Reason: ReasonUnauthenticated}
}

// RoleGuard сверяет роль пользователя со списком маршрута.
// Отказ ведёт на DeniedPath (экран по умолчанию), а не на вход.
type RoleGuard struct {
	Session    Session
	DeniedPath string
}

func (g RoleGuard) Check(route Route) Decision {
	if len(route.Roles) == 0 {
		return allow()
	}

	role := g.Session.Role()
	if strings.TrimSpace(role) == "" {
		return Decision{Redirect: navigation.To(g.DeniedPath), Reason: ReasonNoRole}
	}

	if HasRole(role, route.Roles) {
		return allow()
	}

	return Decision{Redirect: navigation.To(g.DeniedPath), Reason: ReasonRoleMismatch}
}

// NormalizeRole приводит роль к виду ADMIN: регистр не важен, префикс ROLE_ снимается.
func NormalizeRole(r string) string {
	r = strings.ToUpper(strings.TrimSpace(r))
	return strings.TrimPrefix(r, "ROLE_")
}

func HasRole(role string, allowed []string) bool {
	want := NormalizeRole(role)
	if want == "" {
		return false
	}

	for _, a := range allowed {
		if NormalizeRole(a) == want {
			return true
		}
	}

	return false
}

// Guards применяет охрану в порядке Access -> Role.
type Guards struct {
	Access AccessGuard
	Role   RoleGuard
	Routes *RouteTable
}

// Evaluate проверяет адрес (путь с query). Адрес вне таблицы маршрутов
// требует только сессии.
func (g Guards) Evaluate(requested string) Decision {
	if d := g.Access.Check(requested); !d.Allowed {
		return d
	}

	if g.Routes == nil {
		return allow()
	}

	route, ok := g.Routes.Lookup(requested)
	if !ok {
		return allow()
	}

	return g.Role.Check(route)
}
