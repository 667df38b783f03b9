package jobs

// An Event describes a change to a Job. Old is the zero Job when the job was just added.
type Event struct {
	Old Job
	New Job
}

func (e Event) Added() bool {
	return e.Old.ID == ""
}

// Finished returns true if the event is the job reaching a terminal status.
func (e Event) Finished() bool {
	return e.New.IsTerminal() && !e.Old.IsTerminal()
}
