package ride

// Stage is the role-specific display label for a status.
type Stage string

const (
	StagePending  Stage = "pending"
	StageAccepted Stage = "accepted"
	StageComing   Stage = "coming"
	StageArrived  Stage = "arrived"
	StageOnway    Stage = "onway"
	StageDone     Stage = "done"
)

var riderStages = map[RideStatus]Stage{
	StatusAccepted: StageComing,
	StatusArriving: StageArrived,
	StatusOnway:    StageOnway,
}

var driverStages = map[RideStatus]Stage{
	StatusPending:   StagePending,
	StatusAccepted:  StageAccepted,
	StatusArriving:  StageArrived,
	StatusOnway:     StageOnway,
	StatusCompleted: StageDone,
}

// StageFor maps a status into role's vocabulary. The second result is false
// when role has no label for the status (the rider before acceptance, or
// either role once the ride is cancelled).
func StageFor(role Role, status RideStatus) (Stage, bool) {
	var s Stage
	var ok bool
	switch role {
	case RoleRider:
		s, ok = riderStages[status]
	case RoleDriver:
		s, ok = driverStages[status]
	}
	return s, ok
}
