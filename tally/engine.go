// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/policy"
)

// percent returns part as a percentage of whole. Multiplying first keeps
// whole-number inputs exact (50 of 100 is 50, not 50.000000000000007).
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part * 100 / whole
}

// quorum computes participation stats for the units marked present.
// Units are summed in slice order so results are reproducible bit for bit.
func quorum(assemblyID string, isDemo bool, units []models.Unit, present map[string]bool, p policy.Policy) models.QuorumStats {
	stats := models.QuorumStats{
		AssemblyID:             assemblyID,
		IsDemo:                 isDemo,
		TotalUnits:             len(units),
		QuorumThresholdPercent: p.QuorumPercent,
	}
	for _, u := range units {
		stats.TotalCoefficient += u.Coefficient
		if present[u.ID] {
			stats.VotersCount++
			stats.PresentCoefficient += u.Coefficient
		}
	}
	stats.NominalPercent = percent(float64(stats.VotersCount), float64(stats.TotalUnits))
	stats.CoefficientPercent = percent(stats.PresentCoefficient, stats.TotalCoefficient)
	stats.QuorumReached = p.QuorumReached(stats.CoefficientPercent)
	return stats
}

// Participation counts a unit present once it has voted on any question in
// votes. Votes for units outside the universe are ignored.
func Participation(assemblyID string, isDemo bool, units []models.Unit, votes []models.Vote, p policy.Policy) models.QuorumStats {
	present := make(map[string]bool, len(votes))
	for _, v := range votes {
		present[v.UnitID] = true
	}
	return quorum(assemblyID, isDemo, units, present, p)
}

// Attendance computes quorum from confirmed attendance, plus the subset of
// units seen within the connected window.
func Attendance(assemblyID string, isDemo bool, units []models.Unit, records []models.AttendanceRecord, now time.Time, p policy.Policy) models.AttendanceStats {
	confirmed := make(map[string]bool, len(records))
	connected := make(map[string]bool, len(records))
	for _, r := range records {
		confirmed[r.UnitID] = true
		if now.Sub(r.LastSeenAt) <= p.ConnectedWindow {
			connected[r.UnitID] = true
		}
	}

	stats := models.AttendanceStats{QuorumStats: quorum(assemblyID, isDemo, units, confirmed, p)}
	conn := quorum(assemblyID, isDemo, units, connected, p)
	stats.ConnectedCount = conn.VotersCount
	stats.ConnectedNominalPercent = conn.NominalPercent
	stats.ConnectedCoefficientPercent = conn.CoefficientPercent
	return stats
}

// QuestionResults tallies one question. Option percentages use the
// question's mode: vote counts over total units for nominal, coefficient
// sums over the universe's total coefficient for coefficient. Options come
// back in position order with zero-vote options included.
func QuestionResults(q models.Question, units []models.Unit, votes []models.Vote, p policy.Policy) models.TallyStats {
	threshold := p.ThresholdFor(q)
	stats := models.TallyStats{
		QuestionID: q.ID,
		AssemblyID: q.AssemblyID,
		State:      q.State,
		Mode:       q.Mode,
		Archived:   q.Archived,
		Threshold:  threshold,
		TotalUnits: len(units),
		Options:    []models.OptionResult{},
	}

	options := make([]models.Option, len(q.Options))
	copy(options, q.Options)
	sort.Slice(options, func(i, j int) bool {
		if options[i].Position != options[j].Position {
			return options[i].Position < options[j].Position
		}
		return options[i].ID < options[j].ID
	})

	valid := make(map[string]bool, len(options))
	for _, o := range options {
		valid[o.ID] = true
	}

	choice := make(map[string]string, len(votes))
	for _, v := range votes {
		if v.QuestionID == q.ID && valid[v.OptionID] {
			choice[v.UnitID] = v.OptionID
		}
	}

	counts := make(map[string]int, len(options))
	coefs := make(map[string]float64, len(options))
	for _, u := range units {
		stats.TotalCoefficient += u.Coefficient
		opt, ok := choice[u.ID]
		if !ok {
			continue
		}
		counts[opt]++
		coefs[opt] += u.Coefficient
		stats.VotersCount++
		stats.VotersCoefficient += u.Coefficient
	}
	stats.ParticipationNominal = percent(float64(stats.VotersCount), float64(stats.TotalUnits))
	stats.ParticipationCoefficient = percent(stats.VotersCoefficient, stats.TotalCoefficient)

	passing := 0
	for _, o := range options {
		r := models.OptionResult{
			OptionID:         o.ID,
			Text:             o.Text,
			Color:            o.Color,
			Position:         o.Position,
			VotesCount:       counts[o.ID],
			VotesCoefficient: coefs[o.ID],
		}
		if q.Mode == models.ModeNominal {
			r.Percent = percent(float64(r.VotesCount), float64(stats.TotalUnits))
		} else {
			r.Percent = percent(r.VotesCoefficient, stats.TotalCoefficient)
		}
		r.Passes = r.Percent >= threshold
		if r.Passes {
			passing++
		}
		stats.Options = append(stats.Options, r)
	}
	stats.ThresholdWarning = passing > 1

	return stats
}

// InputsHash fingerprints the vote rows a tally was computed from.
func InputsHash(votes []models.Vote) string {
	sorted := make([]models.Vote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].QuestionID != sorted[j].QuestionID {
			return sorted[i].QuestionID < sorted[j].QuestionID
		}
		return sorted[i].UnitID < sorted[j].UnitID
	})

	h := sha256.New()
	for _, v := range sorted {
		h.Write([]byte(v.QuestionID))
		h.Write([]byte{0})
		h.Write([]byte(v.UnitID))
		h.Write([]byte{0})
		h.Write([]byte(v.OptionID))
		h.Write([]byte{0})
		h.Write([]byte(v.UpdatedAt.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
