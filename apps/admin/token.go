package main

import (
	"fmt"
	"strings"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
)

// token prints a token for usr. Roles without a ':' get one appended, so "admin" means "admin:".
func (cli *commandLine) token(usr user.User, roles string) error {
	for _, r := range strings.Split(roles, ",") {
		r = strings.TrimSpace(r)
		if !strings.Contains(r, ":") {
			r += ":"
		}
		if !user.IsValidRole(r) {
			return fmt.Errorf("invalid role %q", r)
		}
		usr.Roles = append(usr.Roles, r)
	}
	tok, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok)
	return nil
}
