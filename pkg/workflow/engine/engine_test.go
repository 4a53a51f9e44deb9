package engine_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/docflow/pkg/eventbus"
	"github.com/jordigilh/docflow/pkg/taskrunner"
	. "github.com/jordigilh/docflow/pkg/workflow/engine"
)

// fakeGenerator lets each test script the outline/content/grammar
// responses and simulate failures deterministically.
type fakeGenerator struct {
	mu             sync.Mutex
	outlines       []string
	contents       []string
	grammarErrors  []int
	draftCalls     int
	draftBlock     chan struct{}
	outlineErr     error
	contentErrOnce error
}

func (f *fakeGenerator) GenerateOutline(ctx context.Context, prompt string, mode WritingMode) (string, error) {
	if f.outlineErr != nil {
		return "", f.outlineErr
	}
	return "outline:" + prompt, nil
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, outline string, mode WritingMode, targetWordCount int) (string, error) {
	f.mu.Lock()
	idx := f.draftCalls
	f.draftCalls++
	f.mu.Unlock()

	if f.draftBlock != nil {
		select {
		case <-f.draftBlock:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if f.contentErrOnce != nil && idx == 0 {
		return "", f.contentErrOnce
	}

	if idx < len(f.contents) {
		return f.contents[idx], nil
	}
	return f.contents[len(f.contents)-1], nil
}

func (f *fakeGenerator) CheckGrammar(ctx context.Context, content string) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := 0
	if len(f.grammarErrors) > 0 {
		errs = f.grammarErrors[0]
		if len(f.grammarErrors) > 1 {
			f.grammarErrors = f.grammarErrors[1:]
		}
	}
	return content, errs, nil
}

type fakeCitations struct {
	report BibliographyReport
}

func (f *fakeCitations) ValidateBibliography(ctx context.Context, text string) (BibliographyReport, error) {
	return f.report, nil
}

type fakeReadability struct {
	scores []float64
	calls  int
}

func (f *fakeReadability) Analyze(text string) ReadabilityReport {
	score := f.scores[f.calls]
	if f.calls < len(f.scores)-1 {
		f.calls++
	}
	return ReadabilityReport{Score: score, Grade: "test"}
}

type fakeEvents struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (f *fakeEvents) Publish(documentID string, kind eventbus.Kind, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventbus.NewEvent(documentID, kind, payload))
}

func (f *fakeEvents) statusUpdates() []eventbus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []eventbus.Event
	for _, e := range f.events {
		if e.Kind == eventbus.KindWorkflowStatusUpdate {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(gen Generator, cit CitationValidator, read ReadabilityAnalyzer) (*Engine, Store, *fakeEvents) {
	store := NewMemoryStore()
	events := &fakeEvents{}
	eng := New(Deps{
		Store:       store,
		Gates:       NewGateRegistry(nil),
		Generator:   gen,
		Citations:   cit,
		Readability: read,
		Events:      events,
		Runner:      taskrunner.NewRunner(nil, 10),
	})
	return eng, store, events
}

func newDocument(store Store, config Config) *Document {
	doc := &Document{
		ID:        "doc-1",
		UserID:    "user-1",
		Title:     "Test Document",
		Status:    StatusIdle,
		Config:    config,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	Expect(store.SaveDocument(context.Background(), doc)).To(Succeed())
	return doc
}

func waitDone(eng *Engine, documentID string) Snapshot {
	Eventually(func() DocumentStatus {
		snap, err := eng.Status(context.Background(), documentID)
		Expect(err).NotTo(HaveOccurred())
		return snap.Status
	}, 2*time.Second, 10*time.Millisecond).Should(SatisfyAny(Equal(StatusDone), Equal(StatusFailed), Equal(StatusIdle)))

	snap, err := eng.Status(context.Background(), documentID)
	Expect(err).NotTo(HaveOccurred())
	return snap
}

var _ = Describe("Engine", func() {
	var config Config

	BeforeEach(func() {
		config = DefaultConfig()
		config.ReadabilityThreshold = 70
	})

	Context("zero citations", func() {
		It("passes the Citation gate and proceeds to Grammar", func() {
			gen := &fakeGenerator{contents: []string{"plain content with no citations"}, grammarErrors: []int{0}}
			cit := &fakeCitations{report: BibliographyReport{Total: 0, ValidationRate: 1.0}}
			read := &fakeReadability{scores: []float64{85}}
			eng, store, _ := newTestEngine(gen, cit, read)
			newDocument(store, config)

			_, err := eng.Start(context.Background(), "doc-1", "write about nothing in particular")
			Expect(err).NotTo(HaveOccurred())

			snap := waitDone(eng, "doc-1")
			Expect(snap.Status).To(Equal(StatusDone))

			var citationNode *Node
			for i := range snap.Nodes {
				if snap.Nodes[i].Type == NodeTypeCitation {
					citationNode = &snap.Nodes[i]
				}
			}
			Expect(citationNode).NotTo(BeNil())
			Expect(citationNode.Status).To(Equal(NodeStatusPass))
		})
	})

	Context("readability exactly at threshold", func() {
		It("passes the Readability gate and completes the document", func() {
			gen := &fakeGenerator{contents: []string{"content"}, grammarErrors: []int{0}}
			cit := &fakeCitations{report: BibliographyReport{Total: 0, ValidationRate: 1.0}}
			read := &fakeReadability{scores: []float64{70.0}}
			eng, store, _ := newTestEngine(gen, cit, read)
			newDocument(store, config)

			_, err := eng.Start(context.Background(), "doc-1", "prompt")
			Expect(err).NotTo(HaveOccurred())

			snap := waitDone(eng, "doc-1")
			Expect(snap.Status).To(Equal(StatusDone))
		})
	})

	Context("readability bounce-back", func() {
		It("rolls back once then completes on the second Readability attempt", func() {
			gen := &fakeGenerator{contents: []string{"first draft", "second draft"}, grammarErrors: []int{0, 0}}
			cit := &fakeCitations{report: BibliographyReport{Total: 0, ValidationRate: 1.0}}
			read := &fakeReadability{scores: []float64{45, 78}}
			eng, store, _ := newTestEngine(gen, cit, read)
			newDocument(store, config)

			_, err := eng.Start(context.Background(), "doc-1", "prompt")
			Expect(err).NotTo(HaveOccurred())

			snap := waitDone(eng, "doc-1")
			Expect(snap.Status).To(Equal(StatusDone))

			var readabilityNodes []Node
			for _, n := range snap.Nodes {
				if n.Type == NodeTypeReadability {
					readabilityNodes = append(readabilityNodes, n)
				}
			}
			Expect(readabilityNodes).To(HaveLen(2))
			Expect(readabilityNodes[0].Status).To(Equal(NodeStatusFail))
			Expect(readabilityNodes[1].Status).To(Equal(NodeStatusPass))
			Expect(readabilityNodes[1].RetryCount).To(Equal(1))
		})
	})

	Context("retry exhaustion", func() {
		It("fails the document after exceeding max_retries on a gate", func() {
			config.MaxRetries = 2
			gen := &fakeGenerator{contents: []string{"d1", "d2", "d3"}, grammarErrors: []int{0, 0, 0}}
			cit := &fakeCitations{report: BibliographyReport{Total: 5, Valid: 0, Invalid: 5, ValidationRate: 0.0}}
			read := &fakeReadability{scores: []float64{90}}
			eng, store, events := newTestEngine(gen, cit, read)
			newDocument(store, config)

			_, err := eng.Start(context.Background(), "doc-1", "prompt")
			Expect(err).NotTo(HaveOccurred())

			snap := waitDone(eng, "doc-1")
			Expect(snap.Status).To(Equal(StatusFailed))

			failCount := 0
			for _, n := range snap.Nodes {
				if n.Type == NodeTypeCitation && n.Status == NodeStatusFail {
					failCount++
				}
			}
			Expect(failCount).To(Equal(3))

			hasTerminalError := false
			for _, e := range events.events {
				if e.Kind == eventbus.KindError {
					hasTerminalError = true
				}
			}
			Expect(hasTerminalError).To(BeTrue())
		})
	})

	Context("cancellation mid-Draft", func() {
		It("returns the document to Idle without a passing Draft node", func() {
			block := make(chan struct{})
			gen := &fakeGenerator{contents: []string{"never reached"}, draftBlock: block}
			cit := &fakeCitations{report: BibliographyReport{Total: 0, ValidationRate: 1.0}}
			read := &fakeReadability{scores: []float64{90}}
			eng, store, _ := newTestEngine(gen, cit, read)
			newDocument(store, config)

			_, err := eng.Start(context.Background(), "doc-1", "prompt")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() DocumentStatus {
				snap, _ := eng.Status(context.Background(), "doc-1")
				return snap.Status
			}, time.Second, 5*time.Millisecond).Should(Equal(StatusDrafting))

			Expect(eng.Stop(context.Background(), "doc-1")).To(Succeed())
			close(block)

			snap := waitDone(eng, "doc-1")
			Expect(snap.Status).To(Equal(StatusIdle))

			for _, n := range snap.Nodes {
				if n.Type == NodeTypeDraft {
					Expect(n.Status).NotTo(Equal(NodeStatusPass))
				}
			}
		})
	})
})
