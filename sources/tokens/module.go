package tokens

import (
	"colabai/sources/repository"
	"colabai/sources/texting/tokenizer"
	"colabai/sources/tracing"

	"go.uber.org/fx"
)

var Module = fx.Module("tokens",
	fx.Provide(
		NewConfig,
		func(config *Config, log *tracing.Logger) *tokenizer.Tokenizer { return tokenizer.New(config.Encoding, log) },
		func(x *repository.SessionsRepository) Sessions { return x },
		NewAccountant,
	),
)
