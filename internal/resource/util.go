package resource

import (
	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

// Util returns the flag service. POST merges flags, GET reads one.
func Util() *service.Service {
	svc := service.New()
	svc.Post("*", utilSet)
	svc.Get(":service", utilGet)
	return svc
}

func utilGet(ctx *service.Context, _ []string, _ service.Query, _ any) (any, error) {
	v, ok := ctx.Flags.Get(ctx.Param("service"))
	if !ok {
		return service.NoContent, nil
	}
	return v, nil
}

func utilSet(ctx *service.Context, _ []string, _ service.Query, body any) (any, error) {
	values, ok := storage.AsRecord(body)
	if !ok {
		return nil, apperr.Request()
	}

	for k, v := range values {
		state := "disabled"
		if storage.Truthy(v) {
			state = "enabled"
		}
		ctx.Log().Info("flag changed", "flag", k, "state", state)
	}
	ctx.Flags.Merge(values)
	return "", nil
}
