package fit

import (
	"context"
)

// Session bundles a measured curve with everything needed to fit it
type Session struct {
	Curve   Curve
	Method  Method
	Starts  StartPolicy
	Options Options
}

// NewSession creates a session with the default grid policy and options
func NewSession(curve Curve, method Method) *Session {
	return &Session{
		Curve:   curve,
		Method:  method,
		Starts:  DefaultGridPolicy(),
		Options: DefaultOptions(),
	}
}

// StartingPoints expands the start policy against the session bounds
func (s *Session) StartingPoints() []Params {
	policy := s.Starts
	if policy == nil {
		policy = DefaultGridPolicy()
	}
	return policy.Starts(s.Options.Bounds)
}

// Run fits the curve
func (s *Session) Run(ctx context.Context) (*Result, error) {
	return NewDriver(s.Options).Fit(ctx, s.Method, s.Curve, s.StartingPoints())
}
