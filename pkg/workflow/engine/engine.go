package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/jordigilh/docflow/internal/errors"
	"github.com/jordigilh/docflow/pkg/eventbus"
	metricspkg "github.com/jordigilh/docflow/pkg/metrics"
	"github.com/jordigilh/docflow/pkg/shared/logging"
	"github.com/jordigilh/docflow/pkg/taskrunner"
)

var tracer = otel.Tracer("github.com/jordigilh/docflow/pkg/workflow/engine")

// infraBackoffBase/Cap/Factor implement the exponential backoff named for
// infrastructure retries: base 1s, doubling, capped at 30s.
const (
	infraBackoffBase   = time.Second
	infraBackoffCap    = 30 * time.Second
	infraBackoffFactor = 2
	defaultInfraRetryCap = 3
)

// stageError distinguishes a gate failure (counts against retry_count)
// from an infrastructure failure (counts against the per-stage infra
// retry cap instead) so the runLoop can apply the right policy.
type stageError struct {
	infra bool
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func infraErr(err error) error  { return &stageError{infra: true, err: err} }
func gateErr(err error) error   { return &stageError{infra: false, err: err} }

func isInfra(err error) bool {
	var se *stageError
	if e, ok := err.(*stageError); ok {
		se = e
		return se.infra
	}
	return false
}

// Engine owns the stage graph: it enqueues stage jobs on the Task
// Runner, evaluates gates, records Nodes/Metrics, and fans out events.
type Engine struct {
	log         *logrus.Logger
	store       Store
	gates       *GateRegistry
	generator   Generator
	citations   CitationValidator
	readability ReadabilityAnalyzer
	events      EventPublisher
	runner      *taskrunner.Runner
}

type Deps struct {
	Log         *logrus.Logger
	Store       Store
	Gates       *GateRegistry
	Generator   Generator
	Citations   CitationValidator
	Readability ReadabilityAnalyzer
	Events      EventPublisher
	Runner      *taskrunner.Runner
}

func New(deps Deps) *Engine {
	log := deps.Log
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		log:         log,
		store:       deps.Store,
		gates:       deps.Gates,
		generator:   deps.Generator,
		citations:   deps.Citations,
		readability: deps.Readability,
		events:      deps.Events,
		runner:      deps.Runner,
	}
}

// Start transitions a Document from Idle or a terminal state to
// Planning and enqueues the Plan stage.
func (e *Engine) Start(ctx context.Context, documentID, userPrompt string) (*taskrunner.Handle, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Status.IsTerminal() {
		return nil, apperrors.NewConflictError("document already running a workflow")
	}

	doc.Status = StatusPlanning
	doc.UpdatedAt = time.Now()
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, apperrors.NewDatabaseError("save document", err)
	}
	e.publishStatus(documentID, StatusPlanning, nil, 0)

	return e.enqueueStage(ctx, documentID, NodeTypePlan, userPrompt)
}

// Stop signals cooperative cancellation of any in-flight stage for the
// document and resets it to Idle.
func (e *Engine) Stop(ctx context.Context, documentID string) error {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	e.runner.Cancel(documentID)

	doc.Status = StatusIdle
	doc.UpdatedAt = time.Now()
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return apperrors.NewDatabaseError("save document", err)
	}
	e.publishStatus(documentID, StatusIdle, nil, -1)
	return nil
}

// Status reports the document's current state, progress, and node
// history.
func (e *Engine) Status(ctx context.Context, documentID string) (Snapshot, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return Snapshot{}, err
	}
	nodes, err := e.store.ListNodes(ctx, documentID)
	if err != nil {
		return Snapshot{}, apperrors.NewDatabaseError("list nodes", err)
	}

	snapshot := Snapshot{
		DocumentID: documentID,
		Status:     doc.Status,
		Progress:   progressFor(nodes),
		Nodes:      nodes,
	}
	if len(nodes) > 0 {
		current := nodes[len(nodes)-1]
		snapshot.CurrentNode = &current
	}
	return snapshot, nil
}

// progressFor computes passed_gates / 5 * 100 from the node history's
// distinct Pass stages.
func progressFor(nodes []Node) float64 {
	passed := map[NodeType]bool{}
	for _, n := range nodes {
		if n.Status == NodeStatusPass {
			passed[n.Type] = true
		}
	}
	return float64(len(passed)) / float64(len(stageOrder)) * 100
}

// RollbackTo re-enqueues the stage appropriate to the target Node's type.
// Nodes created after target stay in the history unmarked: Status,
// progress and the retry_count of later gate runs still count them.
func (e *Engine) RollbackTo(ctx context.Context, documentID, nodeID string) error {
	target, err := e.store.GetNode(ctx, documentID, nodeID)
	if err != nil {
		return err
	}

	restartType := NodeTypeDraft
	restartInput := target.Content
	if target.Type == NodeTypePlan {
		restartType = NodeTypePlan
	} else {
		// Draft and every downstream stage restart from the most recent
		// Plan outline, not from the target node's own artifact.
		restartInput, err = e.lastPassArtifact(ctx, documentID, NodeTypePlan)
		if err != nil {
			return err
		}
	}

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	doc.Status = statusForStage[restartType]
	doc.UpdatedAt = time.Now()
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return apperrors.NewDatabaseError("save document", err)
	}

	_, err = e.enqueueStage(ctx, documentID, restartType, restartInput)
	return err
}

// enqueueStage submits the named stage as a Task Runner job.
func (e *Engine) enqueueStage(ctx context.Context, documentID string, stage NodeType, input string) (*taskrunner.Handle, error) {
	job := taskrunner.Job{
		DocumentID: documentID,
		Stage:      string(stage),
		Run: func(runCtx context.Context) error {
			return e.runStage(runCtx, documentID, stage, input)
		},
	}
	// The job is detached from ctx's cancellation: ctx belongs to the
	// caller (an HTTP request or the previous stage's job), which ends
	// before this job is done. Stop cancels the job through the runner.
	return e.runner.Submit(context.WithoutCancel(ctx), job)
}

// runStage executes one stage to completion, including its own
// infrastructure-retry loop, then applies the gate/rollback/advance
// policy and enqueues whatever comes next. A gate stage's retry_count is
// derived from the document's node history rather than threaded through
// parameters, so it stays correct across the Draft re-run that precedes
// every rollback retry.
func (e *Engine) runStage(ctx context.Context, documentID string, stage NodeType, input string) error {
	ctx, span := tracer.Start(ctx, "stage."+string(stage), trace.WithAttributes(
		attribute.String("document_id", documentID),
	))
	defer span.End()

	log := e.log.WithFields(logging.StageFields(string(stage), documentID, "").ToLogrus())

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	doc.Status = statusForStage[stage]
	doc.UpdatedAt = time.Now()
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return apperrors.NewDatabaseError("save document", err)
	}
	e.publishStatus(documentID, doc.Status, nil, -1)

	retryCount := 0
	if _, isGate := gateForStage(stage); isGate {
		retryCount, err = e.failCount(ctx, documentID, stage)
		if err != nil {
			return err
		}
	}

	node := &Node{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Type:       stage,
		Status:     NodeStatusRunning,
		RetryCount: retryCount,
		CreatedAt:  time.Now(),
	}

	timer := metricspkg.NewTimer()
	content, nodeMetrics, err := e.executeWithInfraRetry(ctx, doc, stage, input, log)
	nodeMetrics.ProcessingTimeMs = timer.Elapsed().Milliseconds()

	if ctx.Err() != nil {
		// Cancellation observed at a suspension point: write nothing,
		// reset to Idle.
		doc.Status = StatusIdle
		doc.UpdatedAt = time.Now()
		_ = e.store.SaveDocument(ctx, doc)
		e.publishStatus(documentID, StatusIdle, nil, -1)
		span.SetStatus(codes.Ok, "cancelled")
		return nil
	}

	if err != nil {
		// Infra retries are exhausted inside executeWithInfraRetry; any
		// error surfacing here is Fatal.
		node.Status = NodeStatusFail
		node.Content = input
		_ = e.store.AppendNode(ctx, node)
		timer.RecordStage(string(stage), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return e.fail(ctx, documentID, stage, err)
	}

	node.Content = content
	nodeMetrics.NodeID = node.ID

	gateType, isGate := gateForStage(stage)
	if !isGate {
		node.Status = NodeStatusPass
		if err := e.store.AppendNode(ctx, node); err != nil {
			return apperrors.NewDatabaseError("append node", err)
		}
		if err := e.store.SaveMetrics(ctx, &nodeMetrics); err != nil {
			return apperrors.NewDatabaseError("save metrics", err)
		}
		e.publishNode(documentID, *node)
		timer.RecordStage(string(stage), true)
		span.SetStatus(codes.Ok, "pass")
		return e.advance(ctx, documentID, stage, content)
	}

	result, err := e.gates.Evaluate(gateType, &nodeMetrics, doc.Config)
	if err != nil {
		return fmt.Errorf("evaluate gate: %w", err)
	}

	if gateType == GateReadability {
		metricspkg.ReadabilityScore.Observe(nodeMetrics.ReadabilityScore)
	}
	if gateType == GateCitation {
		metricspkg.CitationValidationRate.Observe(nodeMetrics.ValidationRate)
	}

	if result.Satisfied {
		node.Status = NodeStatusPass
		if err := e.store.AppendNode(ctx, node); err != nil {
			return apperrors.NewDatabaseError("append node", err)
		}
		if err := e.store.SaveMetrics(ctx, &nodeMetrics); err != nil {
			return apperrors.NewDatabaseError("save metrics", err)
		}
		e.publishNode(documentID, *node)
		log.Info("gate passed: " + result.Message)
		timer.RecordStage(string(stage), true)
		span.SetStatus(codes.Ok, "pass")
		return e.advance(ctx, documentID, stage, content)
	}

	node.Status = NodeStatusFail
	if err := e.store.AppendNode(ctx, node); err != nil {
		return apperrors.NewDatabaseError("append node", err)
	}
	if err := e.store.SaveMetrics(ctx, &nodeMetrics); err != nil {
		return apperrors.NewDatabaseError("save metrics", err)
	}
	e.publishNode(documentID, *node)
	log.Warn("gate failed: " + result.Message)
	timer.RecordStage(string(stage), false)
	metricspkg.RecordGateRetry(string(gateType))
	span.SetStatus(codes.Ok, "gate failed")

	if retryCount >= doc.Config.MaxRetries {
		metricspkg.RecordRetriesExhausted(string(gateType))
		return e.fail(ctx, documentID, stage, fmt.Errorf("%s gate failed after %d retries", stage, retryCount+1))
	}

	// Rollback: re-enqueue Draft with the most recent Plan artifact.
	planArtifact, err := e.lastPassArtifact(ctx, documentID, NodeTypePlan)
	if err != nil {
		return err
	}
	_, err = e.enqueueStage(ctx, documentID, NodeTypeDraft, planArtifact)
	return err
}

// failCount returns how many times stage has already failed its gate
// for this document, used to derive the next Node's retry_count.
func (e *Engine) failCount(ctx context.Context, documentID string, stage NodeType) (int, error) {
	nodes, err := e.store.ListNodes(ctx, documentID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("list nodes", err)
	}
	count := 0
	for _, n := range nodes {
		if n.Type == stage && n.Status == NodeStatusFail {
			count++
		}
	}
	return count, nil
}

// advance moves the pipeline to the stage following cur, or finishes the
// document when cur is the last stage.
func (e *Engine) advance(ctx context.Context, documentID string, cur NodeType, artifact string) error {
	idx := stageIndex(cur)
	if idx == len(stageOrder)-1 {
		doc, err := e.store.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		doc.Status = StatusDone
		doc.Content = artifact
		doc.UpdatedAt = time.Now()
		if err := e.store.SaveDocument(ctx, doc); err != nil {
			return apperrors.NewDatabaseError("save document", err)
		}
		e.publishStatus(documentID, StatusDone, nil, 100)
		metricspkg.RecordDocumentCompleted()
		return nil
	}

	if cur == NodeTypeDraft {
		doc, err := e.store.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		doc.Content = artifact
		doc.UpdatedAt = time.Now()
		if err := e.store.SaveDocument(ctx, doc); err != nil {
			return apperrors.NewDatabaseError("save document", err)
		}
	}

	next := stageOrder[idx+1]
	_, err := e.enqueueStage(ctx, documentID, next, artifact)
	return err
}

// fail marks the document Failed and emits the terminal error event.
func (e *Engine) fail(ctx context.Context, documentID string, stage NodeType, cause error) error {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	doc.Status = StatusFailed
	doc.UpdatedAt = time.Now()
	_ = e.store.SaveDocument(ctx, doc)

	e.events.Publish(documentID, eventbus.KindError, map[string]any{
		"error":     cause.Error(),
		"node_type": string(stage),
	})
	e.publishStatus(documentID, StatusFailed, nil, -1)
	metricspkg.RecordDocumentFailed()
	return cause
}

// lastPassArtifact returns the content of the most recent Pass node of
// the given type.
func (e *Engine) lastPassArtifact(ctx context.Context, documentID string, t NodeType) (string, error) {
	nodes, err := e.store.ListNodes(ctx, documentID)
	if err != nil {
		return "", apperrors.NewDatabaseError("list nodes", err)
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Type == t && nodes[i].Status == NodeStatusPass {
			return nodes[i].Content, nil
		}
	}
	return "", apperrors.NewNotFoundError(fmt.Sprintf("no passing %s node", t))
}

func gateForStage(stage NodeType) (GateType, bool) {
	switch stage {
	case NodeTypeCitation:
		return GateCitation, true
	case NodeTypeGrammar:
		return GateGrammar, true
	case NodeTypeReadability:
		return GateReadability, true
	default:
		return "", false
	}
}

// executeWithInfraRetry runs the stage's actual work, retrying
// infrastructure failures with exponential backoff up to the per-stage
// cap without consuming the gate's retry_count budget.
func (e *Engine) executeWithInfraRetry(ctx context.Context, doc *Document, stage NodeType, input string, log *logrus.Entry) (string, NodeMetrics, error) {
	backoff := infraBackoffBase

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return "", NodeMetrics{}, ctx.Err()
		}

		content, metrics, err := e.executeStage(ctx, doc, stage, input)
		if err == nil {
			return content, metrics, nil
		}
		if ctx.Err() != nil {
			return "", NodeMetrics{}, ctx.Err()
		}
		if !isInfra(err) {
			return "", NodeMetrics{}, err
		}
		if attempt >= defaultInfraRetryCap {
			return "", NodeMetrics{}, fmt.Errorf("infrastructure retries exhausted for %s: %w", stage, err)
		}

		log.WithError(err).WithField("attempt", attempt+1).Warn("infrastructure failure, retrying")
		metricspkg.RecordInfraRetry(string(stage))
		e.events.Publish(doc.ID, eventbus.KindError, map[string]any{
			"error":     err.Error(),
			"node_type": string(stage),
		})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", NodeMetrics{}, ctx.Err()
		}
		backoff *= infraBackoffFactor
		if backoff > infraBackoffCap {
			backoff = infraBackoffCap
		}
	}
}

// executeStage performs the single attempt of a stage's work, calling
// into the Generator/CitationValidator/ReadabilityAnalyzer collaborators.
func (e *Engine) executeStage(ctx context.Context, doc *Document, stage NodeType, input string) (string, NodeMetrics, error) {
	switch stage {
	case NodeTypePlan:
		outline, err := e.generator.GenerateOutline(ctx, input, doc.Config.WritingMode)
		if err != nil {
			return "", NodeMetrics{}, infraErr(err)
		}
		return outline, NodeMetrics{WordCount: wordCount(outline)}, nil

	case NodeTypeDraft:
		content, err := e.generator.GenerateContent(ctx, input, doc.Config.WritingMode, doc.Config.TargetWordCount)
		if err != nil {
			return "", NodeMetrics{}, infraErr(err)
		}
		return content, NodeMetrics{WordCount: wordCount(content)}, nil

	case NodeTypeCitation:
		report, err := e.citations.ValidateBibliography(ctx, input)
		if err != nil {
			return "", NodeMetrics{}, infraErr(err)
		}
		return input, NodeMetrics{
			CitationCount:  report.Total,
			ValidationRate: report.ValidationRate,
			WordCount:      wordCount(input),
		}, nil

	case NodeTypeGrammar:
		corrected, errCount, err := e.generator.CheckGrammar(ctx, input)
		if err != nil {
			return "", NodeMetrics{}, infraErr(err)
		}
		return corrected, NodeMetrics{GrammarErrors: errCount, WordCount: wordCount(corrected)}, nil

	case NodeTypeReadability:
		report := e.readability.Analyze(input)
		return input, NodeMetrics{ReadabilityScore: report.Score, WordCount: wordCount(input)}, nil

	default:
		return "", NodeMetrics{}, gateErr(fmt.Errorf("unsupported stage %s", stage))
	}
}

func wordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

func (e *Engine) publishStatus(documentID string, status DocumentStatus, currentNode *Node, progress float64) {
	payload := map[string]any{"status": string(status)}
	if progress >= 0 {
		payload["progress"] = progress
	}
	if currentNode != nil {
		payload["current_node"] = currentNode
	}
	e.events.Publish(documentID, eventbus.KindWorkflowStatusUpdate, payload)
}

func (e *Engine) publishNode(documentID string, node Node) {
	e.events.Publish(documentID, eventbus.KindNodeStatusUpdate, map[string]any{
		"node": map[string]any{
			"id":      node.ID,
			"type":    string(node.Type),
			"status":  string(node.Status),
			"content": node.Content,
		},
	})
}
