// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package policy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielhkuo/quorum/models"
)

// Policy holds the deployment-tunable voting rules.
type Policy struct {
	// Maximum active powers naming the same receiver handle in one assembly.
	ProxyCapPerReceiver int `yaml:"proxy_cap_per_receiver"`

	// Structural edits stay possible this long after activation.
	GraceWindow time.Duration `yaml:"grace_window"`

	// Non-demo assemblies finalize on their own this long after activation.
	AutoFinalizeAfter time.Duration `yaml:"auto_finalize_after"`

	// Quorum is reached when coefficient participation is strictly above this.
	QuorumPercent float64 `yaml:"quorum_percent"`

	// Approval threshold for questions that do not set their own.
	DefaultThreshold float64 `yaml:"default_threshold"`

	// Reopen costs this percentage of the activation cost, rounded up, minimum 1.
	ReopenPercent int64 `yaml:"reopen_percent"`

	// A unit counts as connected if its last attendance ping is this recent.
	ConnectedWindow time.Duration `yaml:"connected_window"`

	ResultsCacheTTL  time.Duration `yaml:"results_cache_ttl"`
	ResultsCacheSize int           `yaml:"results_cache_size"`

	// Allowed distance from 100 for a universe's coefficient sum.
	CoefficientTolerance float64 `yaml:"coefficient_tolerance"`
}

// Default returns the rules used when no policy file is given.
func Default() Policy {
	return Policy{
		ProxyCapPerReceiver:  3,
		GraceWindow:          72 * time.Hour,
		AutoFinalizeAfter:    72 * time.Hour,
		QuorumPercent:        50,
		DefaultThreshold:     51,
		ReopenPercent:        10,
		ConnectedWindow:      30 * time.Second,
		ResultsCacheTTL:      5 * time.Second,
		ResultsCacheSize:     1024,
		CoefficientTolerance: 0.01,
	}
}

// Validate rejects settings the engine cannot work with.
func (p Policy) Validate() error {
	var errs []error
	if p.ProxyCapPerReceiver < 1 {
		errs = append(errs, errors.New("proxy_cap_per_receiver must be at least 1"))
	}
	if p.GraceWindow < 0 || p.AutoFinalizeAfter <= 0 {
		errs = append(errs, errors.New("grace_window must be >= 0 and auto_finalize_after > 0"))
	}
	if p.QuorumPercent < 0 || p.QuorumPercent >= 100 {
		errs = append(errs, fmt.Errorf("quorum_percent %v out of range [0, 100)", p.QuorumPercent))
	}
	if p.DefaultThreshold <= 0 || p.DefaultThreshold > 100 {
		errs = append(errs, fmt.Errorf("default_threshold %v out of range (0, 100]", p.DefaultThreshold))
	}
	if p.ReopenPercent < 0 {
		errs = append(errs, errors.New("reopen_percent must be >= 0"))
	}
	if p.ResultsCacheTTL < 0 || p.ResultsCacheSize < 0 {
		errs = append(errs, errors.New("results cache settings must be >= 0"))
	}
	return errors.Join(errs...)
}

// ActivationCost is one credit per unit of the assembly's universe.
func (p Policy) ActivationCost(totalUnits int) int64 {
	return int64(totalUnits)
}

// ReopenCost is max(1, ceil(ReopenPercent% of the activation cost)).
func (p Policy) ReopenCost(activationCost int64) int64 {
	c := (activationCost*p.ReopenPercent + 99) / 100
	if c < 1 {
		return 1
	}
	return c
}

// StructureEditable reports whether questions and units of the assembly's
// universe may still be edited at now. Once an assembly has been finalized
// its structure stays frozen, even after a reopen.
func (p Policy) StructureEditable(a models.Assembly, now time.Time) bool {
	switch {
	case a.State == models.AssemblyDraft:
		return true
	case a.State != models.AssemblyActive:
		return false
	case a.IsDemo:
		return true
	case a.ReopenCount > 0:
		return false
	case a.ActivatedAt == nil:
		return true
	}
	return now.Before(a.ActivatedAt.Add(p.GraceWindow))
}

// AutoFinalizeDue reports whether an active assembly has outlived its window.
// Demo assemblies never auto-finalize.
func (p Policy) AutoFinalizeDue(a models.Assembly, now time.Time) bool {
	if a.State != models.AssemblyActive || a.IsDemo || a.ActivatedAt == nil {
		return false
	}
	return !now.Before(a.ActivatedAt.Add(p.AutoFinalizeAfter))
}

func (p Policy) QuorumReached(coefficientPercent float64) bool {
	return coefficientPercent > p.QuorumPercent
}

// ThresholdFor returns the question's own threshold or the default.
func (p Policy) ThresholdFor(q models.Question) float64 {
	if q.Threshold != nil {
		return *q.Threshold
	}
	return p.DefaultThreshold
}

func (p Policy) CoefficientSumValid(sum float64) bool {
	return math.Abs(sum-100) <= p.CoefficientTolerance
}
