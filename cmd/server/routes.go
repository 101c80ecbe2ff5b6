package main

import (
	"net/http"
)

func (app *application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	wrap := func(next http.Handler) http.Handler {
		return app.recoverPanic(app.logAndTraceRequest(next))
	}
	handle := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, wrap(handler))
	}

	handle("POST /api/profiles", app.profileCreatePOST)
	handle("GET /api/profiles/{userID}", app.profileGET)
	handle("PUT /api/profiles/{userID}/goal", app.profileGoalPUT)

	handle("POST /api/routines", app.routineGeneratePOST)
	handle("GET /api/routines/{routineID}", app.routineGET)
	handle("POST /api/routines/{routineID}/complete", app.routineCompletePOST)
	handle("POST /api/routines/{routineID}/exercises", app.routineExerciseAddPOST)
	handle("PUT /api/routines/{routineID}/exercises/{position}", app.routineExerciseReplacePUT)
	handle("DELETE /api/routines/{routineID}/exercises/{position}", app.routineExerciseRemoveDELETE)

	handle("GET /api/users/{userID}/level-test/eligibility", app.levelTestEligibilityGET)
	handle("POST /api/users/{userID}/level-test", app.levelTestGeneratePOST)
	handle("POST /api/users/{userID}/level-test/results", app.levelTestEvaluatePOST)
	handle("GET /api/users/{userID}/level-test/history", app.levelTestHistoryGET)

	handle("GET /api/healthy", app.healthy)

	return mux
}
