package auth

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

type Role string

const (
	RoleManager Role = "MANAGER"
	RoleDentist Role = "DENTIST"
)

func (r Role) Valid() bool { return r == RoleManager || r == RoleDentist }

// Permission is "<area>:<action>" or "<area>:<action>:own" for permissions
// limited to the caller's own rows.
type Permission string

const (
	PatientsRead         Permission = "patients:read"
	PatientsWrite        Permission = "patients:write"
	PatientsDelete       Permission = "patients:delete"
	MedicalCasesRead     Permission = "medical_cases:read"
	MedicalCasesWrite    Permission = "medical_cases:write"
	AppointmentsRead     Permission = "appointments:read"
	AppointmentsReadOwn  Permission = "appointments:read:own"
	AppointmentsWrite    Permission = "appointments:write"
	AppointmentsWriteOwn Permission = "appointments:write:own"
	VisitsRead           Permission = "visits:read"
	VisitsReadOwn        Permission = "visits:read:own"
	InvoicesRead         Permission = "invoices:read"
	InvoicesReadOwn      Permission = "invoices:read:own"
	InvoicesWrite        Permission = "invoices:write"
	PaymentsRead         Permission = "payments:read"
	PaymentsReadOwn      Permission = "payments:read:own"
	PaymentsWrite        Permission = "payments:write"
	PaymentsVoid         Permission = "payments:void"
	InventoryRead        Permission = "inventory:read"
	InventoryWrite       Permission = "inventory:write"
	ProfitSharesRead     Permission = "profit_shares:read"
	ProfitSharesReadOwn  Permission = "profit_shares:read:own"
	ProfitSharesWrite    Permission = "profit_shares:write"
	UsersRead            Permission = "users:read"
	UsersWrite           Permission = "users:write"
	ReportsRead          Permission = "reports:read"
	ReportsReadOwn       Permission = "reports:read:own"
	AuditRead            Permission = "audit:read"
)

func set(perms ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

var rolePermissions = map[Role]map[Permission]bool{
	RoleManager: set(
		PatientsRead, PatientsWrite, PatientsDelete,
		MedicalCasesRead, MedicalCasesWrite,
		AppointmentsRead, AppointmentsWrite,
		VisitsRead,
		InvoicesRead, InvoicesWrite,
		PaymentsRead, PaymentsWrite, PaymentsVoid,
		InventoryRead, InventoryWrite,
		ProfitSharesRead, ProfitSharesWrite,
		UsersRead, UsersWrite,
		ReportsRead,
		AuditRead,
	),
	RoleDentist: set(
		PatientsRead, PatientsWrite,
		MedicalCasesRead, MedicalCasesWrite,
		AppointmentsReadOwn, AppointmentsWriteOwn,
		VisitsReadOwn,
		InvoicesReadOwn,
		PaymentsReadOwn,
		InventoryRead,
		ProfitSharesReadOwn,
		ReportsReadOwn,
		UsersRead,
	),
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	return rolePermissions[role][perm]
}

// PermissionsFor lists the permissions of role in sorted order.
func PermissionsFor(role Role) []Permission {
	out := make([]Permission, 0, len(rolePermissions[role]))
	for p := range rolePermissions[role] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RequirePermission rejects anonymous callers with 401 and callers lacking
// perm with 403.
func RequirePermission(perm Permission) echo.MiddlewareFunc {
	return RequireAnyPermission(perm)
}

// RequireAnyPermission passes when the caller holds at least one of perms.
func RequireAnyPermission(perms ...Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, p := range perms {
				if HasPermission(actor.Role, p) {
					return next(c)
				}
			}
			names := make([]string, len(perms))
			for i, p := range perms {
				names[i] = string(p)
			}
			return echo.NewHTTPError(http.StatusForbidden, "required permission: "+strings.Join(names, " or "))
		}
	}
}

// RequireSession only checks that the caller is authenticated.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := ActorFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
