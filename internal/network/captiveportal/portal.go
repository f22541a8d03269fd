// Package captiveportal implements the AP-mode captive portal (spec
// §4.I/§6): a wildcard DNS responder, a single-page HTTP redirect
// server, and a WebSocket endpoint carrying binary-CBOR actions that
// drive WiFi provisioning.
//
// Grounded on the teacher's internal/fabric/websocket.go upgrade
// pattern (gorilla/websocket) and internal/api's gorilla/mux routing;
// the DNS wildcard responder is new (no teacher file touches DNS) and
// is grounded directly on github.com/miekg/dns's published server API,
// the pack's DNS dependency.
package captiveportal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/miekg/dns"
)

// Action is the binary-CBOR request discriminator (spec §6).
type Action int

const (
	ActionStatus Action = 100
	ActionSave   Action = 101
	ActionScan   Action = 102
	ActionAsk    Action = 103
)

// Request is the decoded shape of every inbound WebSocket message.
// Not every field is populated for every action.
type Request struct {
	Action Action `cbor:"action"`
	SSID   string `cbor:"ssid,omitempty"`
	Pass   string `cbor:"pass,omitempty"`
	Acc    string `cbor:"acc,omitempty"`
}

// StatusResponse answers ActionStatus.
type StatusResponse struct {
	ID      string     `json:"id"`
	Acc     string     `json:"acc"`
	Nets    [][4]any   `json:"nets"`
	HomeNet string     `json:"homeNet"`
}

// ScanResponse answers ActionScan, broadcast to every connected client.
type ScanResponse struct {
	Nets [][4]any `json:"nets"`
}

// AskResponse answers ActionAsk.
type AskResponse struct {
	Success int `json:"success"`
}

// Handlers supplies the portal's behavior; Server wires it to HTTP/WS/DNS
// transports.
type Handlers struct {
	// DeviceID is the 12-hex device id returned in STATUS.
	DeviceID string
	// AccountID returns the currently bound account (empty if none).
	AccountID func() string
	// ScanNetworks returns [bssid, ssid, rssi, secured] tuples.
	ScanNetworks func() [][4]any
	// HomeNetwork returns the currently stored SSID, if any.
	HomeNetwork func() string
	// Save is invoked on ActionSave; it should trigger an STA connect
	// attempt after the spec's 500ms delay itself (callers own timing).
	Save func(ssid, pass, acc string)
	// Ask reports whether an action is currently permitted (e.g. a
	// pending confirmation), returning 1/0 for AskResponse.Success.
	Ask func() bool
	// IndexHTML is the gzip-encoded HTML blob served at GET /.
	IndexHTML []byte
}

// Server hosts the captive portal's DNS, HTTP, and WebSocket
// listeners. The three are started/stopped independently, matching
// spec §4.I's two-phase, timed-gap stop sequence (close WebSockets,
// then stop AP, then tear down HTTP). Server has no single Stop method:
// the caller orders StopWebSockets, StopHTTP and StopDNS itself.
type Server struct {
	h Handlers

	httpServer *http.Server
	dnsServer  *dns.Server
	upgrader   websocket.Upgrader

	conns  map[*websocket.Conn]struct{}
	logger *log.Logger
}

// NewServer builds an unstarted Server.
func NewServer(h Handlers) *Server {
	return &Server{
		h:        h,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]struct{}),
		logger:   log.New(log.Writer(), "[PORTAL] ", log.LstdFlags),
	}
}

// ListenAndServeHTTP starts the HTTP+WebSocket listener on addr.
// GET / returns the embedded HTML; any other path redirects to
// http://uniot.local/ (spec §6); GET /ws upgrades to the action
// WebSocket.
func (s *Server) ListenAndServeHTTP(addr string) error {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex)
	r.HandleFunc("/ws", s.handleWS)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "http://uniot.local/", http.StatusFound)
	})

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s.httpServer.ListenAndServe()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Redirect(w, r, "http://uniot.local/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Type", "text/html")
	w.Write(s.h.IndexHTML)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed: %v", err)
		return
	}
	s.conns[conn] = struct{}{}
	defer func() {
		delete(s.conns, conn)
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		s.handleAction(conn, data)
	}
}

// handleAction decodes a CBOR Request and replies per spec §6.
func (s *Server) handleAction(conn *websocket.Conn, raw []byte) {
	req, err := DecodeRequest(raw)
	if err != nil {
		s.logger.Printf("malformed action payload: %v", err)
		return
	}

	switch req.Action {
	case ActionStatus:
		resp := StatusResponse{ID: s.h.DeviceID, Acc: s.h.AccountID(), Nets: s.h.ScanNetworks(), HomeNet: s.h.HomeNetwork()}
		s.writeJSON(conn, resp)
	case ActionSave:
		s.h.Save(req.SSID, req.Pass, req.Acc)
	case ActionScan:
		s.Broadcast(ScanResponse{Nets: s.h.ScanNetworks()})
	case ActionAsk:
		ok := 0
		if s.h.Ask != nil && s.h.Ask() {
			ok = 1
		}
		s.writeJSON(conn, AskResponse{Success: ok})
	default:
		s.logger.Printf("unknown action %d", req.Action)
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("marshal response: %v", err)
		return
	}
	conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast sends v as JSON text to every connected client.
func (s *Server) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	for conn := range s.conns {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// StopWebSockets closes every open client connection, the first phase
// of the spec's two-phase stop sequence.
func (s *Server) StopWebSockets() {
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

// StopHTTP tears down the HTTP listener, the final phase of the stop
// sequence (after the AP itself has come down).
func (s *Server) StopHTTP(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// DNSHandler answers every query with the AP's fixed address (spec
// §6: "wildcard A? → 1.1.1.1; TTL 30s; ServerFailure on DNS errors"),
// grounded on github.com/miekg/dns's dns.HandleFunc server pattern.
type DNSHandler struct {
	APAddress net.IP
}

// ServeDNS implements dns.Handler.
func (h DNSHandler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := new(dns.Msg)
	msg.SetReply(r)

	if len(r.Question) == 0 {
		msg.Rcode = dns.RcodeServerFailure
		w.WriteMsg(msg)
		return
	}

	q := r.Question[0]
	if q.Qtype != dns.TypeA {
		msg.Rcode = dns.RcodeServerFailure
		w.WriteMsg(msg)
		return
	}

	rr := &dns.A{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 30},
		A:   h.APAddress,
	}
	msg.Answer = append(msg.Answer, rr)
	w.WriteMsg(msg)
}

// ListenAndServeDNS starts a UDP DNS server on addr answering every
// query with apAddress.
func (s *Server) ListenAndServeDNS(addr string, apAddress net.IP) error {
	mux := dns.NewServeMux()
	mux.Handle(".", DNSHandler{APAddress: apAddress})

	s.dnsServer = &dns.Server{Addr: addr, Net: "udp", Handler: mux}
	return s.dnsServer.ListenAndServe()
}

// StopDNS shuts the DNS listener down.
func (s *Server) StopDNS(ctx context.Context) error {
	if s.dnsServer == nil {
		return nil
	}
	return s.dnsServer.ShutdownContext(ctx)
}

// APSSID builds the spec's AP SSID: "UNIOT-<shortDeviceId>".
func APSSID(shortDeviceID string) string {
	return fmt.Sprintf("UNIOT-%s", shortDeviceID)
}

// SaveConnectDelay is the spec's fixed delay between receiving SAVE
// and triggering the STA connect attempt.
const SaveConnectDelay = 500 * time.Millisecond
