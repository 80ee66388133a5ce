// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package workflow

import (
	"slices"

	"github.com/vk/rxcropmaturity/internal/cropcal"
	"github.com/vk/rxcropmaturity/internal/runlength"
)

// Stage identifies one step of the workflow.
type Stage int

const (
	CloneGddGenCase Stage = iota
	ConfigureGddGenRun
	RunGddGenSimulation
	DeriveMaturityRequirements
	ConfigurePrescribedRun
	RunPrescribedSimulation
	ValidatePrescribedRun
)

var stageNames = [...]string{
	"CloneGddGenCase",
	"ConfigureGddGenRun",
	"RunGddGenSimulation",
	"DeriveMaturityRequirements",
	"ConfigurePrescribedRun",
	"RunPrescribedSimulation",
	"ValidatePrescribedRun",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// Stages lists every stage in execution order.
func Stages() []Stage {
	return []Stage{
		CloneGddGenCase,
		ConfigureGddGenRun,
		RunGddGenSimulation,
		DeriveMaturityRequirements,
		ConfigurePrescribedRun,
		RunPrescribedSimulation,
		ValidatePrescribedRun,
	}
}

// State is the record threaded through the stages. Stages never modify a
// State in place; each returns a new value with its results filled in.
type State struct {
	RunID string

	// Set at construction.
	Length    runlength.Length
	Calendars cropcal.Files
	StartYear int
	CTSMRoot  string
	BaseRoot  string

	// Filled in by the stages.
	CloneRoot   string
	LanduseIn   string
	LanduseOut  string
	SurfaceOut  string
	GddsDir     string
	GddsFile    string
	Completed   []Stage
	NamelistLog map[string][]string
}

// FirstSeason is the first usable season year.
func (s State) FirstSeason() int {
	return s.Length.FirstUsableYear(s.StartYear)
}

// LastSeason is the last usable season year.
func (s State) LastSeason() int {
	return s.Length.LastUsableYear(s.StartYear)
}

// with returns a copy of s with fn applied. Slices and maps are cloned so
// that earlier States are not affected.
func (s State) with(fn func(*State)) State {
	s.Completed = slices.Clone(s.Completed)
	log := make(map[string][]string, len(s.NamelistLog))
	for k, v := range s.NamelistLog {
		log[k] = slices.Clone(v)
	}
	s.NamelistLog = log
	fn(&s)
	return s
}

func (s State) withCompleted(stage Stage) State {
	return s.with(func(n *State) { n.Completed = append(n.Completed, stage) })
}

func (s State) withNamelist(caseRoot string, lines []string) State {
	return s.with(func(n *State) { n.NamelistLog[caseRoot] = append(n.NamelistLog[caseRoot], lines...) })
}
