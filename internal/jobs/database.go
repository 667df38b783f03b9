package jobs

// A Database persists finished jobs, so they can still be fetched after a restart.
type Database interface {
	ListJobs() ([]Job, error)
	WriteJob(*Job) error
	DeleteJob(ID) error
}

type NilDatabase struct{}

func (d NilDatabase) ListJobs() ([]Job, error) {
	return nil, nil
}

func (d NilDatabase) WriteJob(_ *Job) error {
	return nil
}

func (d NilDatabase) DeleteJob(_ ID) error {
	return nil
}
