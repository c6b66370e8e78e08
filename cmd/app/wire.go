//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/efficiencynow/efficiencynow/internal/bootstrap"
	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	"github.com/efficiencynow/efficiencynow/internal/infra/config"
	httpiface "github.com/efficiencynow/efficiencynow/internal/interface/http"
	"github.com/efficiencynow/efficiencynow/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideUserRepository,
		provideUserIndex,
		provideCredentialHasher,
		provideSessionStore,
		auth.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
