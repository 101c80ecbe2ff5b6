package main

import (
	"errors"
	"net/http"

	"github.com/repstack/trainer/internal/leveltest"
	"github.com/repstack/trainer/internal/profile"
)

func (app *application) levelTestEligibilityGET(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.parseUserIDParam(w, r)
	if !ok {
		return
	}

	eligibility, err := app.levelTests.CheckEligibility(r.Context(), userID)
	if errors.Is(err, profile.ErrNotFound) {
		app.clientError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, eligibility)
}

func (app *application) levelTestGeneratePOST(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.parseUserIDParam(w, r)
	if !ok {
		return
	}

	test, err := app.levelTests.Generate(r.Context(), userID)
	if errors.Is(err, profile.ErrNotFound) {
		app.clientError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		app.clientError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	app.writeJSON(w, r, http.StatusCreated, test)
}

func (app *application) levelTestEvaluatePOST(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.parseUserIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Results []leveltest.LiftResult `json:"results"`
	}
	if !app.readJSON(w, r, &req) {
		return
	}

	outcome, err := app.levelTests.Evaluate(r.Context(), userID, req.Results)
	if errors.Is(err, profile.ErrNotFound) {
		app.clientError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	if errors.Is(err, leveltest.ErrNotEligible) {
		app.clientError(w, r, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		app.clientError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	app.writeJSON(w, r, http.StatusOK, outcome)
}

func (app *application) levelTestHistoryGET(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.parseUserIDParam(w, r)
	if !ok {
		return
	}

	attempts, err := app.levelTests.History(r.Context(), userID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, attempts)
}
