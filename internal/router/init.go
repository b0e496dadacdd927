package router

import (
	"github.com/campuslink/account-service/internal/application"
	"github.com/campuslink/account-service/internal/container"
	repo "github.com/campuslink/account-service/internal/domain/repository"
	pginfra "github.com/campuslink/account-service/internal/infrastructure/postgres"
	handlers "github.com/campuslink/account-service/internal/interface/http"
	"github.com/campuslink/account-service/internal/router/modules"
)

type AccountModuleDeps struct {
	Users   repo.UserRepository
	Avatars repo.AvatarRepository
	Service *application.Service
	Handler *handlers.AccountHandler
}

func buildAccountDeps() AccountModuleDeps {
	users := pginfra.NewUserRepository(container.GetPGPool())
	avatars := pginfra.NewAvatarRepository(container.GetPGPool())

	service := application.NewService(
		users,
		avatars,
		container.GetGCS(),
		container.GetConfig().GCSBucket,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		container.GetConfig().ESUsersIndex,
		container.GetRabbitPub(),
	)

	handler := handlers.NewAccountHandler(service, container.GetLogger())

	return AccountModuleDeps{
		Users:   users,
		Avatars: avatars,
		Service: service,
		Handler: handler,
	}
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	deps := buildAccountDeps()
	r.Add(modules.NewAccountModule(deps.Handler, container.GetJWT()))
	r.Add(modules.NewOpsModule())
}
