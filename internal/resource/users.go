package resource

import (
	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

// Users returns the account service: me, register, login and logout.
func Users() *service.Service {
	svc := service.New()
	svc.Get("me", usersMe)
	svc.Post("register", usersRegister)
	svc.Post("login", usersLogin)
	svc.Get("logout", usersLogout)
	return svc
}

func usersMe(ctx *service.Context, _ []string, _ service.Query, _ any) (any, error) {
	if ctx.User == nil {
		return nil, apperr.Authorization()
	}
	me := ctx.User.Clone()
	delete(me, auth.FieldHashedPassword)
	return me, nil
}

func usersRegister(ctx *service.Context, _ []string, _ service.Query, body any) (any, error) {
	data, _ := storage.AsRecord(body)
	return ctx.Auth.Register(ctx.Ctx, data)
}

func usersLogin(ctx *service.Context, _ []string, _ service.Query, body any) (any, error) {
	data, _ := storage.AsRecord(body)
	return ctx.Auth.Login(ctx.Ctx, data)
}

func usersLogout(ctx *service.Context, _ []string, _ service.Query, _ any) (any, error) {
	if err := ctx.Auth.Logout(ctx.Ctx, ctx.User, ctx.Token); err != nil {
		return nil, err
	}
	return service.NoContent, nil
}
