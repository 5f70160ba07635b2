package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/ws"
)

func SetupRoutes(d Deps) http.Handler {
	d.Log = d.Log.Named("http")
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger(d.Log))

	r.Get("/healthz", Healthz)
	r.Get("/scripts/list", ListScripts(d))
	r.Get("/ws", ws.Handler(d.Store, d.WSOriginPatterns, d.Log))

	r.Route("/game", func(r chi.Router) {
		r.Post("/new", NewGame(d))
		r.Get("/history", History(d))
		r.Get("/state", GameState(d))
		r.Get("/open_slots", OpenSlots(d))
		r.Get("/status_effects", StatusEffects(d))
		r.Get("/night/phase", NightPhase(d))
		r.Post("/night/phase/step", SetNightStep(d))
		r.Post("/night/phase/first_night", SetFirstNight(d))
		r.Get("/script/night/{which}", NightSteps(d))
	})

	r.Route("/characters", func(r chi.Router) {
		r.Post("/add", AddCharacter(d))
		r.Post("/add/multi", AddCharacters(d))
		r.Post("/remove", RemoveCharacter(d))
		r.Get("/travelers", Travelers(d))
	})

	r.Route("/players", func(r chi.Router) {
		r.Post("/add", AddPlayer(d))
		r.Post("/add_with_role", AddPlayerWithRole(d))
		r.Post("/add_traveler", AddTraveler(d))
		r.Post("/remove", RemovePlayer(d))
		r.Get("/list", ListPlayers(d))
		r.Get("/name/{name}", PlayerByName(d))
		r.Post("/set_alive", SetAlive(d))
		r.Post("/set_has_used_dead_vote", SetDeadVote(d))
		r.Post("/set_alignment", SetAlignment(d))
		r.Post("/swap_character", SwapCharacters(d))
		r.Post("/status_effects/add", AddStatusEffect(d))
		r.Post("/status_effects/remove", RemoveStatusEffect(d))
		r.Get("/visibility", Visibility(d))
		r.Post("/set_visibility", SetVisibility(d))
	})

	r.Route("/timer", func(r chi.Router) {
		r.Get("/fetch", FetchTimer(d))
		r.Post("/start", StartTimer(d))
		r.Post("/stop", StopTimer(d))
		r.Post("/add", AddTime(d))
	})

	r.Route("/sounds", func(r chi.Router) {
		r.Get("/list", ListSounds(d))
		r.Get("/play/{name}", PlaySound(d))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
