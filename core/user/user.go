package user

import (
	"sort"
	"strings"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleSuperAdmin = "admin:super"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleSuperAdmin}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleSuperAdmin: 30,
		RoleAdmin:      21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	sort.Strings(all)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	idx := sort.SearchStrings(AllRoles, role)
	return idx < len(AllRoles) && AllRoles[idx] == role
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is the authenticated user acting on a screen. It is injected by the transport layer.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// Role returns the user's highest priority role, or "" when they have none.
func (u User) Role() string {
	var (
		top string
		max int
	)
	for _, role := range u.Roles {
		if p := RolePriority(role); p > max {
			top, max = role, p
		}
	}
	return top
}

func (u User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether any of the user's roles starts with one of roles.
// An empty roles list allows everyone.
func (u User) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if u.RoleStartsWith(r) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u User) IsSuperAdmin() bool {
	return u.RoleStartsWith(RoleSuperAdmin)
}

func (u User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

func (u User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// CanGrant reports whether u may hand out role: nobody grants above their own rank.
func (u User) CanGrant(role string) bool {
	return RolePriority(role) <= MaxRolePriority(u.Roles)
}
