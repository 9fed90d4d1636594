package main

import (
	"context"

	"github.com/trezcool/malalamiko/core/account"
)

func (cli *commandLine) resetPassword(ctx context.Context, email string, role account.Role, pwd, confirm string) error {
	return cli.accountSvc.ResetPassword(ctx, account.ResetPassword{
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
}
