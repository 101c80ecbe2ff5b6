package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/progression"
	"github.com/repstack/trainer/internal/routine"
)

func (app *application) routineGeneratePOST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      int64                       `json:"user_id"`
		Date        string                      `json:"date"`
		Condition   *progression.ConditionInput `json:"condition"`
		Strategy    string                      `json:"strategy"`
		Equipment   []string                    `json:"equipment"`
		DurationMin int                         `json:"duration_min"`
	}
	if !app.readJSON(w, r, &req) {
		return
	}

	var date time.Time
	if req.Date != "" {
		var err error
		if date, err = time.Parse(time.DateOnly, req.Date); err != nil {
			app.clientError(w, r, http.StatusBadRequest, "date must be formatted like 2006-01-02")
			return
		}
	}
	switch routine.Strategy(req.Strategy) {
	case "", routine.StrategyCatalog, routine.StrategyCreative, routine.StrategyAgentic:
	default:
		app.clientError(w, r, http.StatusBadRequest, "strategy must be catalog, creative or agentic")
		return
	}

	generated, err := app.routines.Generate(r.Context(), routine.GenerateRequest{
		UserID:      req.UserID,
		Date:        date,
		Condition:   req.Condition,
		Strategy:    routine.Strategy(req.Strategy),
		Equipment:   req.Equipment,
		DurationMin: req.DurationMin,
	})
	if errors.Is(err, profile.ErrNotFound) {
		app.clientError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, generated)
}

func (app *application) routineGET(w http.ResponseWriter, r *http.Request) {
	rt, err := app.routines.Get(r.Context(), r.PathValue("routineID"))
	if errors.Is(err, routine.ErrRoutineNotFound) {
		app.clientError(w, r, http.StatusNotFound, "routine not found")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, rt)
}

func (app *application) routineCompletePOST(w http.ResponseWriter, r *http.Request) {
	routineID := r.PathValue("routineID")
	err := app.routines.Complete(r.Context(), routineID)
	if errors.Is(err, routine.ErrRoutineNotFound) {
		app.clientError(w, r, http.StatusConflict, "routine not found or already completed")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	rt, err := app.routines.Get(r.Context(), routineID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, rt)
}

func (app *application) routineExerciseAddPOST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		app.clientError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	rt, err := app.routines.AddExercise(r.Context(), r.PathValue("routineID"), req.Name)
	app.writeRoutineEdit(w, r, rt, err)
}

func (app *application) routineExerciseReplacePUT(w http.ResponseWriter, r *http.Request) {
	position, ok := app.parsePositionParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		app.clientError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	rt, err := app.routines.ReplaceExercise(r.Context(), r.PathValue("routineID"), position, req.Name)
	app.writeRoutineEdit(w, r, rt, err)
}

func (app *application) routineExerciseRemoveDELETE(w http.ResponseWriter, r *http.Request) {
	position, ok := app.parsePositionParam(w, r)
	if !ok {
		return
	}

	rt, err := app.routines.RemoveExercise(r.Context(), r.PathValue("routineID"), position)
	app.writeRoutineEdit(w, r, rt, err)
}

// writeRoutineEdit maps edit results onto HTTP responses. Edit failures
// beyond a missing routine are treated as client mistakes such as an
// out-of-range position or removing the last exercise.
func (app *application) writeRoutineEdit(w http.ResponseWriter, r *http.Request, rt routine.Routine, err error) {
	if errors.Is(err, routine.ErrRoutineNotFound) {
		app.clientError(w, r, http.StatusNotFound, "routine not found")
		return
	}
	if err != nil {
		app.clientError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	app.writeJSON(w, r, http.StatusOK, rt)
}
