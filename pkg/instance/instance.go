package instance

import "github.com/vegshop/vegshop-backend/pkg/env"

const localID = "local"

// GetID identifies the running process in logs. Heroku's DYNO wins over
// WORKER_ID; local runs report "local".
func GetID() string {
	if id, ok := env.First("DYNO", "WORKER_ID"); ok {
		return id
	}
	return localID
}
