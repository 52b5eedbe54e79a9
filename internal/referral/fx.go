package referral

import (
	"github.com/trmhq/trm/internal/referral/repository"
	"github.com/trmhq/trm/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
