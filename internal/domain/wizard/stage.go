package wizard

import "fmt"

// Stage is a step of the expense wizard.
type Stage string

const (
	StageStartLocation Stage = "start_location"
	StageConfirmStart  Stage = "confirm_start"
	StageEndLocation   Stage = "end_location"
	StageWaypoints     Stage = "waypoints"
	StageCalculate     Stage = "calculate"
	StageDetails       Stage = "details"
)

// stageOrder is the linear sequence of the wizard.
var stageOrder = []Stage{
	StageStartLocation,
	StageConfirmStart,
	StageEndLocation,
	StageWaypoints,
	StageCalculate,
	StageDetails,
}

// validTransitions allows one step forward or one step back.
var validTransitions = map[Stage][]Stage{
	StageStartLocation: {StageConfirmStart},
	StageConfirmStart:  {StageEndLocation, StageStartLocation},
	StageEndLocation:   {StageWaypoints, StageConfirmStart},
	StageWaypoints:     {StageCalculate, StageEndLocation},
	StageCalculate:     {StageDetails, StageWaypoints},
	StageDetails:       {StageCalculate},
}

// IsValid returns true if the stage is recognized.
func (s Stage) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if moving from s to target is allowed.
func (s Stage) CanTransitionTo(target Stage) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// Index returns the zero-based position of the stage, or -1.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage, or false at the end.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[i+1], true
}

// Previous returns the preceding stage, or false at the start.
func (s Stage) Previous() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return stageOrder[i-1], true
}

// IsTerminal reports whether s is the last stage.
func (s Stage) IsTerminal() bool {
	return s == StageDetails
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// ParseStage converts a string to a Stage.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid wizard stage: %s", s)
	}
	return stage, nil
}
