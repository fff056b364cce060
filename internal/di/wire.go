//go:build wireinject
// +build wireinject

package di

import (
	"ChartSync/pkg/config"
	"ChartSync/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideInfra,

		// External interfaces
		ProvideBackfiller,
		ProvideLiveFeed,
		ProvideNotifier,

		// Engine and API
		ProvideEngine,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
