package network

import (
	"github.com/trmhq/trm/internal/network/policy"
	"github.com/trmhq/trm/internal/network/repository"
	"github.com/trmhq/trm/internal/network/service"
	"go.uber.org/fx"
)

var Module = fx.Module("network",
	fx.Provide(repository.Provide),
	fx.Provide(policy.NewSchedule),
	fx.Provide(service.New),
)
