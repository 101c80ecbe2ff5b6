package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/repstack/trainer/internal/profile"
)

type profileResponse struct {
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"display_name"`
	HeightCM    float64    `json:"height_cm"`
	WeightKG    float64    `json:"weight_kg"`
	FitnessGoal string     `json:"fitness_goal"`
	Level       int        `json:"level"`
	LastTestAt  *time.Time `json:"last_test_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toProfileResponse(p profile.Profile) profileResponse {
	return profileResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		HeightCM:    p.HeightCM,
		WeightKG:    p.WeightKG,
		FitnessGoal: p.FitnessGoal,
		Level:       p.Level,
		LastTestAt:  p.LastTestAt,
		CreatedAt:   p.CreatedAt,
	}
}

func (app *application) profileCreatePOST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string  `json:"display_name"`
		HeightCM    float64 `json:"height_cm"`
		WeightKG    float64 `json:"weight_kg"`
		FitnessGoal string  `json:"fitness_goal"`
		Level       int     `json:"level"`
	}
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		app.clientError(w, r, http.StatusBadRequest, "display_name is required")
		return
	}

	created, err := app.profiles.Create(r.Context(), profile.Profile{
		DisplayName: req.DisplayName,
		HeightCM:    req.HeightCM,
		WeightKG:    req.WeightKG,
		FitnessGoal: req.FitnessGoal,
		Level:       req.Level,
	})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, toProfileResponse(created))
}

func (app *application) profileGET(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.parseUserIDParam(w, r)
	if !ok {
		return
	}

	p, err := app.profiles.Get(r.Context(), userID)
	if errors.Is(err, profile.ErrNotFound) {
		app.clientError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, toProfileResponse(p))
}

func (app *application) profileGoalPUT(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.parseUserIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		FitnessGoal string `json:"fitness_goal"`
	}
	if !app.readJSON(w, r, &req) {
		return
	}

	err := app.profiles.UpdateGoal(r.Context(), userID, req.FitnessGoal)
	if errors.Is(err, profile.ErrNotFound) {
		app.clientError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	p, err := app.profiles.Get(r.Context(), userID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, toProfileResponse(p))
}
