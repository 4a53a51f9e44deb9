package api_test

import (
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/docflow/pkg/eventbus"
)

var _ = Describe("WebSocket channel", func() {
	var ts *httptest.Server

	BeforeEach(func() {
		ts, _ = newTestServer()
	})

	AfterEach(func() {
		ts.Close()
	})

	wsURL := func(base, documentID string) string {
		return "ws" + strings.TrimPrefix(base, "http") + "/workflow/" + documentID + "/ws"
	}

	It("relays published events and answers a client ping with a pong", func() {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "doc-ws"), nil)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var established eventbus.Event
		Expect(conn.ReadJSON(&established)).To(Succeed())
		Expect(established.Kind).To(Equal(eventbus.KindConnectionEstablished))

		Expect(conn.WriteJSON(map[string]string{"type": "ping"})).To(Succeed())

		var event eventbus.Event
		Expect(conn.ReadJSON(&event)).To(Succeed())
		Expect(event.Kind).To(Equal(eventbus.KindPong))
		Expect(event.DocumentID).To(Equal("doc-ws"))
	})
})
