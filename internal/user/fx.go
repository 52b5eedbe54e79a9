package user

import (
	"github.com/trmhq/trm/internal/user/repository"
	"github.com/trmhq/trm/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewDirectory),
)
