package repository

import "go.uber.org/fx"

var Module = fx.Module("repository",
	fx.Provide(
		NewSessionsConfig,
		NewLedgersRepository,
		func(x *LedgersRepository) Ledgers { return x },
		NewUsageRepository,
		NewPurchasesRepository,
		NewSessionsRepository,
		NewHealthRepository,
	),
)
