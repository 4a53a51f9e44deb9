package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/docflow/pkg/api"
	"github.com/jordigilh/docflow/pkg/eventbus"
	"github.com/jordigilh/docflow/pkg/taskrunner"
	"github.com/jordigilh/docflow/pkg/workflow/engine"
)

type stubGenerator struct{}

func (stubGenerator) GenerateOutline(context.Context, string, engine.WritingMode) (string, error) {
	return "I. Intro\nII. Body", nil
}
func (stubGenerator) GenerateContent(context.Context, string, engine.WritingMode, int) (string, error) {
	return "full content", nil
}
func (stubGenerator) CheckGrammar(context.Context, string) (string, int, error) {
	return "full content", 0, nil
}

type stubCitations struct{}

func (stubCitations) ValidateBibliography(context.Context, string) (engine.BibliographyReport, error) {
	return engine.BibliographyReport{ValidationRate: 1.0}, nil
}

type stubReadability struct{}

func (stubReadability) Analyze(string) engine.ReadabilityReport {
	return engine.ReadabilityReport{Score: 80, Grade: "easy"}
}

func newTestServer() (*httptest.Server, engine.Store) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store := engine.NewMemoryStore()
	bus := eventbus.NewBus(log)
	eng := engine.New(engine.Deps{
		Log:         log,
		Store:       store,
		Gates:       engine.NewGateRegistry(log),
		Generator:   stubGenerator{},
		Citations:   stubCitations{},
		Readability: stubReadability{},
		Events:      bus,
		Runner:      taskrunner.NewRunner(log, 10),
	})
	docs := api.NewDocumentService(store)
	server := api.NewServer(eng, docs, bus, []string{"*"}, log)
	return httptest.NewServer(server.Router()), store
}

var _ = Describe("Control API", func() {
	var (
		ts    *httptest.Server
		store engine.Store
	)

	BeforeEach(func() {
		ts, store = newTestServer()
	})

	AfterEach(func() {
		ts.Close()
	})

	It("creates a document", func() {
		body, _ := json.Marshal(map[string]any{"title": "My Post"})
		resp, err := http.Post(ts.URL+"/workflow/documents", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var doc engine.Document
		Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
		Expect(doc.Title).To(Equal("My Post"))
		Expect(doc.Status).To(Equal(engine.StatusIdle))
	})

	It("rejects document creation missing a title", func() {
		body, _ := json.Marshal(map[string]any{})
		resp, err := http.Post(ts.URL+"/workflow/documents", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("lists documents", func() {
		Expect(store.SaveDocument(context.Background(), &engine.Document{ID: "d1", Title: "One", Status: engine.StatusIdle})).To(Succeed())

		resp, err := http.Get(ts.URL + "/workflow/documents")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var docs []engine.Document
		Expect(json.NewDecoder(resp.Body).Decode(&docs)).To(Succeed())
		Expect(docs).To(HaveLen(1))
	})

	It("starts a workflow and reports status", func() {
		doc := &engine.Document{ID: "d2", Title: "Two", Status: engine.StatusIdle, Config: engine.DefaultConfig()}
		Expect(store.SaveDocument(context.Background(), doc)).To(Succeed())

		body, _ := json.Marshal(map[string]any{"document_id": "d2", "prompt": "write about Go"})
		resp, err := http.Post(ts.URL+"/workflow/start", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Eventually(func() engine.DocumentStatus {
			resp, err := http.Get(ts.URL + "/workflow/d2/status")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			var snap engine.Snapshot
			Expect(json.NewDecoder(resp.Body).Decode(&snap)).To(Succeed())
			return snap.Status
		}).Should(Equal(engine.StatusDone))
	})

	It("returns 404 for an unknown document's status", func() {
		resp, err := http.Get(ts.URL + "/workflow/does-not-exist/status")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("stops a workflow", func() {
		doc := &engine.Document{ID: "d3", Title: "Three", Status: engine.StatusPlanning}
		Expect(store.SaveDocument(context.Background(), doc)).To(Succeed())

		resp, err := http.Post(ts.URL+"/workflow/d3/stop", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
