package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/archive"
	"github.com/DoyleJ11/storyteller-backend/internal/engine"
	"github.com/DoyleJ11/storyteller-backend/internal/reveal"
	"github.com/DoyleJ11/storyteller-backend/internal/script"
	"github.com/DoyleJ11/storyteller-backend/internal/sound"
	"github.com/DoyleJ11/storyteller-backend/internal/store"
	"github.com/DoyleJ11/storyteller-backend/internal/timer"
	"github.com/DoyleJ11/storyteller-backend/internal/types"
	api "github.com/DoyleJ11/storyteller-backend/pkg/types"
)

type Deps struct {
	Registry *script.Registry
	Store    *store.Store
	Gate     *reveal.Gate
	Timer    *timer.Service
	Sounds   sound.Player
	Archive  *archive.Archiver // nil disables archiving
	// WSOriginPatterns are the cross-origin hosts allowed to open /ws.
	WSOriginPatterns []string
	// GameOptions are applied to every session created by POST /game/new.
	GameOptions []engine.Option
	Log         *zap.Logger
}

// view serves fn's result from one read-only store acquisition.
func view[T any](d Deps, fn func(g *engine.Game) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.View(r.Context(), d.Store, fn)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// update decodes a Req body and applies fn in one store acquisition. The
// session only changes when fn succeeds.
func update[Req, T any](d Deps, fn func(g *engine.Game, req Req) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decode(w, r, &req); err != nil {
			writeError(w, d.Log, err)
			return
		}
		out, err := store.Update(r.Context(), d.Store, func(g *engine.Game) (T, error) {
			return fn(g, req)
		})
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ListScripts(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Registry.Names())
	}
}

// NewGame replaces the session. The displaced one is archived once the store
// has let go of it.
func NewGame(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.NewGame
		if err := decode(w, r, &req); err != nil {
			writeError(w, d.Log, err)
			return
		}
		s, err := d.Registry.Script(req.Script)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		g, err := engine.NewGame(s, req.PlayerCount, d.GameOptions...)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}

		old, err := d.Store.Replace(r.Context(), g)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		if err := d.Archive.Save(context.WithoutCancel(r.Context()), old); err != nil {
			d.Log.Warn("archiving replaced session", zap.Error(err))
		}

		d.Log.Info("new game", zap.String("script", s.Name), zap.Int("player_count", req.PlayerCount))
		// committed sessions are never mutated again, so g is safe to read
		writeJSON(w, http.StatusCreated, types.FromGame(g))
	}
}

func History(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, d.Log, fmt.Errorf("%w: limit must be within 1..100", errBadRequest))
				return
			}
			limit = n
		}
		recs, err := d.Archive.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		if recs == nil {
			recs = []archive.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func GameState(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) (types.Game, error) {
		return types.FromGame(g), nil
	})
}

func OpenSlots(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) (types.Slots, error) {
		slots, err := g.OpenSlots()
		return types.FromDistribution(slots), err
	})
}

func nightOf(g *engine.Game) types.Night {
	return types.Night{Step: g.CurrentNightStep, IsFirstNight: g.IsFirstNight}
}

func NightPhase(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) (types.Night, error) { return nightOf(g), nil })
}

func SetNightStep(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.NightStep) (types.Night, error) {
		if err := g.SetNightStep(req.Step); err != nil {
			return types.Night{}, err
		}
		return nightOf(g), nil
	})
}

func SetFirstNight(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.FirstNight) (types.Night, error) {
		g.SetFirstNight(req.IsFirstNight)
		return nightOf(g), nil
	})
}

// NightSteps serves first, other or steps (the current night).
func NightSteps(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pick func(*engine.Game) []script.NightStep
		switch which := chi.URLParam(r, "which"); which {
		case "first":
			pick = (*engine.Game).FirstNightSteps
		case "other":
			pick = (*engine.Game).OtherNightSteps
		case "steps":
			pick = (*engine.Game).NightSteps
		default:
			writeError(w, d.Log, fmt.Errorf("%w: night list %q", engine.ErrNotFound, which))
			return
		}
		view(d, func(g *engine.Game) ([]types.NightStep, error) {
			return types.FromNightSteps(pick(g)), nil
		})(w, r)
	}
}

func StatusEffects(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) ([]types.StatusEffect, error) {
		return types.FromStatusEffects(g.StatusEffects()), nil
	})
}

func AddCharacter(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Role) (types.Character, error) {
		c, err := g.IncludeRole(req.Name)
		if err != nil {
			return types.Character{}, err
		}
		return types.FromCharacter(c), nil
	})
}

func AddCharacters(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Roles) ([]types.Character, error) {
		cs, err := g.IncludeRoles(req.Names)
		if err != nil {
			return nil, err
		}
		return types.FromCharacters(cs), nil
	})
}

func RemoveCharacter(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Role) ([]types.Character, error) {
		if err := g.ExcludeRole(req.Name); err != nil {
			return nil, err
		}
		return types.FromCharacters(g.IncludedRoles), nil
	})
}

func Travelers(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) ([]types.Character, error) {
		return types.FromCharacters(g.UnclaimedTravelers()), nil
	})
}

func AddPlayer(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Player) (types.Player, error) {
		p, err := g.AssignRandom(req.Name)
		return types.FromPlayer(p), err
	})
}

func AddPlayerWithRole(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.PlayerWithRole) (types.Player, error) {
		p, err := g.AssignRole(req.Name, req.Role)
		return types.FromPlayer(p), err
	})
}

func AddTraveler(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.PlayerWithTraveler) (types.Player, error) {
		p, err := g.AddTraveler(req.Name, req.Traveler)
		return types.FromPlayer(p), err
	})
}

func RemovePlayer(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Player) (types.Player, error) {
		p, err := g.RemovePlayer(req.Name)
		return types.FromPlayer(p), err
	})
}

func ListPlayers(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) ([]types.Player, error) {
		return types.FromPlayers(g.PlayerViews()), nil
	})
}

// PlayerByName holds the request until roles are revealed, then serves the
// player.
func PlayerByName(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Gate.Wait(r.Context()); err != nil {
			writeError(w, d.Log, err)
			return
		}
		name := chi.URLParam(r, "name")
		view(d, func(g *engine.Game) (types.Player, error) {
			p, err := g.Player(name)
			if err != nil {
				return types.Player{}, err
			}
			return types.FromPlayer(p.View()), nil
		})(w, r)
	}
}

func SetAlive(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.SetAlive) (types.Player, error) {
		p, err := g.SetAlive(req.Name, req.IsAlive)
		return types.FromPlayer(p), err
	})
}

func SetDeadVote(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.SetDeadVote) (types.Player, error) {
		p, err := g.SetDeadVote(req.Name, req.HasUsedDeadVote)
		return types.FromPlayer(p), err
	})
}

func SetAlignment(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.SetAlignment) (types.Player, error) {
		a, ok := script.ParseAlignment(req.Alignment)
		if !ok {
			return types.Player{}, fmt.Errorf("%w: unknown alignment %q", engine.ErrInvalidArgument, req.Alignment)
		}
		p, err := g.SetAlignment(req.Name, a)
		return types.FromPlayer(p), err
	})
}

func SwapCharacters(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Swap) ([]types.Player, error) {
		a, b, err := g.SwapCharacters(req.First, req.Second)
		if err != nil {
			return nil, err
		}
		return types.FromPlayers([]engine.Player{a, b}), nil
	})
}

func AddStatusEffect(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.StatusEffect) (types.Player, error) {
		p, err := g.AddStatusEffect(req.Name, req.Effect)
		return types.FromPlayer(p), err
	})
}

func RemoveStatusEffect(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.StatusEffect) (types.Player, error) {
		p, err := g.RemoveStatusEffect(req.Name, req.Effect)
		return types.FromPlayer(p), err
	})
}

func Visibility(d Deps) http.HandlerFunc {
	return view(d, func(g *engine.Game) (api.Visibility, error) {
		return api.Visibility{Reveal: g.ShouldRevealRoles}, nil
	})
}

func SetVisibility(d Deps) http.HandlerFunc {
	return update(d, func(g *engine.Game, req api.Visibility) (api.Visibility, error) {
		g.SetVisibility(req.Reveal)
		return api.Visibility{Reveal: g.ShouldRevealRoles}, nil
	})
}

func FetchTimer(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.FromTimer(d.Timer.Fetch()))
	}
}

func StartTimer(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.TimerStart
		if err := decode(w, r, &req); err != nil {
			writeError(w, d.Log, err)
			return
		}
		if err := d.Timer.Start(req.Seconds); err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.FromTimer(d.Timer.Fetch()))
	}
}

func StopTimer(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Timer.Stop()
		writeJSON(w, http.StatusOK, types.FromTimer(d.Timer.Fetch()))
	}
}

func AddTime(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.TimerAdd
		if err := decode(w, r, &req); err != nil {
			writeError(w, d.Log, err)
			return
		}
		if err := d.Timer.AddSeconds(req.Seconds); err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.FromTimer(d.Timer.Fetch()))
	}
}

func ListSounds(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Sounds []sound.Name            `json:"sounds"`
			Groups map[string][]sound.Name `json:"groups"`
		}{Sounds: sound.All, Groups: sound.Groups})
	}
}

func PlaySound(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "name")
		n, ok := sound.Parse(raw)
		if !ok {
			writeError(w, d.Log, fmt.Errorf("%w: sound %q", engine.ErrNotFound, raw))
			return
		}
		d.Sounds.Play(n)
		writeJSON(w, http.StatusOK, struct {
			OK bool `json:"ok"`
		}{OK: true})
	}
}
