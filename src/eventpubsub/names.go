package eventpubsub

const (
	SimulationStateChanged = "simulation.state_changed"
	SimulationCompleted    = "simulation.completed"
	ResetJobFinished       = "simulation.reset_finished"
)
