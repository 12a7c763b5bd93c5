package usecases

import "github.com/google/uuid"

func generateJobID() string {
	return "job_" + uuid.New().String()
}

func generateSessionID() string {
	return "sess_" + uuid.New().String()
}
