// Package rbac is the permission evaluator and tenant guard every business
// handler runs before touching storage. The permission matrix maps
// (tenant, role, module, action) to a boolean; absence means denied and the
// admin role bypasses the matrix entirely.
package rbac

import "net/http"

// Module is the closed enumeration of permission-gated application areas.
type Module string

const (
	ModuleDashboard Module = "dashboard"
	ModuleLeads     Module = "leads"
	ModuleClients   Module = "clients"
	ModuleEvents    Module = "events"
	ModuleFinancial Module = "financial"
	ModuleUsers     Module = "users"
	ModuleProposals Module = "proposals"
	ModuleContracts Module = "contracts"
	ModuleStaffing  Module = "staffing"
)

// Modules lists every valid module, in display order.
var Modules = []Module{
	ModuleDashboard,
	ModuleLeads,
	ModuleClients,
	ModuleEvents,
	ModuleFinancial,
	ModuleUsers,
	ModuleProposals,
	ModuleContracts,
	ModuleStaffing,
}

func ValidModule(m Module) bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}
	return false
}

// Action is the closed enumeration of operations on a module.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

func ValidAction(a Action) bool {
	switch a {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ActionForMethod maps an HTTP method to its fixed action:
// GET->read, POST->create, PUT/PATCH->update, DELETE->delete.
func ActionForMethod(method string) (Action, bool) {
	switch method {
	case http.MethodGet, http.MethodHead:
		return ActionRead, true
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}
