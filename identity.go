package await

// Identity is the immutable (job, run) pair that names one execution
// attempt on the platform. Both fields are opaque identifiers scoped to
// a single status source and are never reused for a different logical
// execution. The zero value is not a valid identity.
type Identity struct {
	JobID string `json:"job_id"`
	RunID string `json:"run_id"`
}

// String returns "job/run" for logging.
func (id Identity) String() string {
	return id.JobID + "/" + id.RunID
}

// Valid reports whether both parts of the identity are set.
func (id Identity) Valid() bool {
	return id.JobID != "" && id.RunID != ""
}
