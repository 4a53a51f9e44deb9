package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// GateType is the closed set of gate predicates a stage can be evaluated
// against, generalized from the teacher's PostConditionType enum down to
// the three gates this pipeline actually has.
type GateType string

const (
	GateCitation    GateType = "citation"
	GateGrammar     GateType = "grammar"
	GateReadability GateType = "readability"
)

// GateResult is the outcome of evaluating a single gate.
type GateResult struct {
	Type      GateType
	Satisfied bool
	Message   string
}

// Gate is a named predicate over a stage's NodeMetrics and the document's
// Config, registered once and evaluated on every execution of its stage.
type Gate interface {
	Type() GateType
	Evaluate(metrics *NodeMetrics, config Config) GateResult
}

type citationGate struct{}

func (citationGate) Type() GateType { return GateCitation }

func (citationGate) Evaluate(metrics *NodeMetrics, _ Config) GateResult {
	if metrics.CitationCount == 0 {
		return GateResult{Type: GateCitation, Satisfied: true, Message: "no citations present, gate passes by convention"}
	}
	return GateResult{
		Type:      GateCitation,
		Satisfied: metrics.ValidationRate >= 0.8,
		Message:   fmt.Sprintf("citation validation_rate=%.2f", metrics.ValidationRate),
	}
}

type grammarGate struct{}

func (grammarGate) Type() GateType { return GateGrammar }

func (grammarGate) Evaluate(metrics *NodeMetrics, _ Config) GateResult {
	return GateResult{
		Type:      GateGrammar,
		Satisfied: metrics.GrammarErrors <= 5,
		Message:   fmt.Sprintf("grammar_errors=%d", metrics.GrammarErrors),
	}
}

type readabilityGate struct{}

func (readabilityGate) Type() GateType { return GateReadability }

func (readabilityGate) Evaluate(metrics *NodeMetrics, config Config) GateResult {
	return GateResult{
		Type:      GateReadability,
		Satisfied: metrics.ReadabilityScore >= config.ReadabilityThreshold,
		Message:   fmt.Sprintf("readability_score=%.2f threshold=%.2f", metrics.ReadabilityScore, config.ReadabilityThreshold),
	}
}

// GateRegistry evaluates a stage's registered gate against its metrics,
// logging the decision the way the teacher's ValidatorRegistry logs each
// post-condition's pass/fail.
type GateRegistry struct {
	log   *logrus.Logger
	gates map[GateType]Gate
}

func NewGateRegistry(log *logrus.Logger) *GateRegistry {
	if log == nil {
		log = logrus.New()
	}
	r := &GateRegistry{log: log, gates: make(map[GateType]Gate)}
	r.Register(citationGate{})
	r.Register(grammarGate{})
	r.Register(readabilityGate{})
	return r
}

func (r *GateRegistry) Register(gate Gate) {
	r.gates[gate.Type()] = gate
}

// Evaluate runs the gate registered for gateType against metrics/config.
func (r *GateRegistry) Evaluate(gateType GateType, metrics *NodeMetrics, config Config) (GateResult, error) {
	gate, ok := r.gates[gateType]
	if !ok {
		return GateResult{}, fmt.Errorf("no gate registered for type %s", gateType)
	}
	result := gate.Evaluate(metrics, config)
	if result.Satisfied {
		r.log.WithField("gate", gateType).Info("gate passed: " + result.Message)
	} else {
		r.log.WithField("gate", gateType).Warn("gate failed: " + result.Message)
	}
	return result, nil
}
