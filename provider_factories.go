package healthdata

import (
	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/providers/fitbit"
)

func FitbitProvider(cfg fitbit.Config) (core.ProviderAdapter, error) {
	return fitbit.New(cfg)
}

// BuiltinProviderPack bundles every shipped provider adapter.
func BuiltinProviderPack(fitbitCfg fitbit.Config) (ProviderPack, error) {
	adapter, err := FitbitProvider(fitbitCfg)
	if err != nil {
		return ProviderPack{}, err
	}
	return ProviderPack{
		Name:     "builtin",
		Adapters: []core.ProviderAdapter{adapter},
	}, nil
}
