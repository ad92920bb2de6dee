package internal

import (
	"net/http"

	"pickd/internal/controllers"
	"pickd/internal/providers"
	"pickd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, commandController *controllers.CommandController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/channels", http.HandlerFunc(apiController.ListChannels))
	routers.Get("/channels/{channel}/events", http.HandlerFunc(apiController.ListEvents))
	routers.Post("/channels/{channel}/events", http.HandlerFunc(apiController.CreateEvent))
	routers.Get("/channels/{channel}/events/{id}", http.HandlerFunc(apiController.ShowEvent))
	routers.Put("/channels/{channel}/events/{id}", http.HandlerFunc(apiController.UpdateEvent))
	routers.Delete("/channels/{channel}/events/{id}", http.HandlerFunc(apiController.DeleteEvent))
	routers.Post("/channels/{channel}/events/{id}/participants", http.HandlerFunc(apiController.PatchParticipants))
	routers.Post("/channels/{channel}/events/{id}/pick", http.HandlerFunc(apiController.Pick))
	routers.Post("/channels/{channel}/events/{id}/retry", http.HandlerFunc(apiController.Retry))
	routers.Post("/command", http.HandlerFunc(commandController.Execute))
	return routers
}
