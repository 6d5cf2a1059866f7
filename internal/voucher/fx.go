package voucher

import (
	"github.com/smallbiznis/bookkeeper/internal/voucher/repository"
	"github.com/smallbiznis/bookkeeper/internal/voucher/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voucher.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
