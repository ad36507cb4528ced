// Command kvsctl hosts one or more storage.Device instances and exposes
// their object-lifecycle and checkpoint operations over HTTP and gRPC.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/kvsadapter/wtkvs/internal/storage"
)

var (
	flagHTTP    = flag.String("http", ":8080", "HTTP listen address (empty to disable)")
	flagGRPC    = flag.String("grpc", ":9090", "gRPC listen address (empty to disable)")
	flagDevice  = flag.String("device", "default", "name of the default device")
	flagConfig  = flag.String("config", "", "kvs_devices-style config string for the default device")
	flagVerbose = flag.Bool("v", false, "verbose logging")
)

// adminRequest is the wire shape for every lifecycle/admin operation.
type adminRequest struct {
	Device      string `json:"device"`
	Op          string `json:"op"` // create, drop, rename, truncate, checkpoint, dump, verify
	URI         string `json:"uri,omitempty"`
	NewURI      string `json:"new_uri,omitempty"`
	KeyFormat   string `json:"key_format,omitempty"`
	ValueFormat string `json:"value_format,omitempty"`
	Bitfield    bool   `json:"bitfield,omitempty"`
	Namespace   string `json:"namespace,omitempty"` // for dump: primary|cache
}

type kvEntry struct {
	KeyHex   string `json:"key_hex"`
	ValueHex string `json:"value_hex"`
}

type adminResponse struct {
	RequestID string    `json:"request_id"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Duration  string    `json:"duration"`
	Entries   []kvEntry `json:"entries,omitempty"`
}

// ── gRPC JSON codec + manual ServiceDesc, no protobuf ──────────────────────

type jsonCodec struct{}

func (jsonCodec) Name() string                               { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)               { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error          { return json.Unmarshal(data, v) }

// KVSCtlServer is the gRPC surface: a single Admin RPC dispatching on Op.
type KVSCtlServer interface {
	Admin(context.Context, *adminRequest) (*adminResponse, error)
}

func registerKVSCtlServer(s *grpc.Server, srv KVSCtlServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "kvsctl.KVSCtl",
		HandlerType: (*KVSCtlServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Admin", Handler: _KVSCtl_Admin_Handler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "kvsctl",
	}, srv)
}

func _KVSCtl_Admin_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(adminRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVSCtlServer).Admin(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kvsctl.KVSCtl/Admin"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(KVSCtlServer).Admin(ctx, req.(*adminRequest)) }
	return interceptor(ctx, in, info, handler)
}

// ── server state ────────────────────────────────────────────────────────

type server struct {
	mu            sync.RWMutex
	devices       map[string]*storage.Device
	defaultDevice string
}

func newServer() *server {
	return &server{devices: make(map[string]*storage.Device)}
}

func (s *server) addDevice(name string, d *storage.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[name] = d
	if s.defaultDevice == "" {
		s.defaultDevice = name
	}
}

func (s *server) device(name string) (*storage.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.TrimSpace(name) == "" {
		name = s.defaultDevice
	}
	d, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", name)
	}
	return d, nil
}

func keyFormatFromString(s string) storage.KeyFormat {
	if s == "r" {
		return storage.KeyFormatRecordNumber
	}
	return storage.KeyFormatByteString
}

// Admin implements KVSCtlServer.
func (s *server) Admin(ctx context.Context, req *adminRequest) (*adminResponse, error) {
	start := time.Now()
	reqID := storage.NewCorrelationID()
	resp := func(err error, entries []kvEntry) *adminResponse {
		out := &adminResponse{RequestID: reqID, Duration: time.Since(start).String(), Entries: entries}
		if err != nil {
			out.Error = err.Error()
			out.ErrorKind = storage.Code(err).String()
			return out
		}
		out.Success = true
		return out
	}

	d, err := s.device(req.Device)
	if err != nil {
		return resp(err, nil), nil
	}

	switch req.Op {
	case "create":
		err := d.Create(req.URI, keyFormatFromString(req.KeyFormat), req.Bitfield, req.ValueFormat)
		return resp(err, nil), nil
	case "drop":
		return resp(d.Drop(req.URI), nil), nil
	case "rename":
		return resp(d.Rename(req.URI, req.NewURI), nil), nil
	case "truncate":
		return resp(d.Truncate(req.URI), nil), nil
	case "checkpoint":
		return resp(d.Checkpoint(), nil), nil
	case "verify":
		return resp(d.Verify(req.URI), nil), nil
	case "dump":
		_, deviceName, objectName, perr := storage.ParseURI(req.URI)
		if perr != nil {
			return resp(perr, nil), nil
		}
		_ = deviceName
		ns := "WiredTiger." + objectName
		if req.Namespace == "cache" {
			ns += ".cache"
		}
		pairs, derr := d.DumpNamespace(ns)
		if derr != nil {
			return resp(derr, nil), nil
		}
		entries := make([]kvEntry, len(pairs))
		for i, p := range pairs {
			entries[i] = kvEntry{KeyHex: hex.EncodeToString(p.Key), ValueHex: hex.EncodeToString(p.Value)}
		}
		return resp(nil, entries), nil
	default:
		return resp(fmt.Errorf("unknown op %q", req.Op), nil), nil
	}
}

// ── HTTP surface ────────────────────────────────────────────────────────

func (s *server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp, _ := s.Admin(r.Context(), &req)
	writeJSON(w, resp)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	s.mu.RUnlock()
	writeJSON(w, map[string]any{
		"ok":      true,
		"time":    time.Now().Format(time.RFC3339),
		"devices": names,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	flag.Parse()

	kv := storage.NewMemKVDevice()

	txn := storage.NewInProcTxnService()
	meta := storage.NewInMemoryMetaCatalog()

	d, err := storage.NewDevice(*flagDevice, kv, txn, meta, *flagConfig)
	if err != nil {
		log.Fatalf("bind device: %v", err)
	}
	if err := storage.BindDevices(d); err != nil {
		log.Fatalf("bind transaction namespace: %v", err)
	}
	if err := storage.Recover(d); err != nil {
		log.Fatalf("recover: %v", err)
	}
	d.StartCleaner()

	srv := newServer()
	srv.addDevice(*flagDevice, d)

	encoding.RegisterCodec(jsonCodec{})

	if *flagGRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", *flagGRPC)
			if err != nil {
				log.Printf("gRPC listen error: %v", err)
				return
			}
			gs := grpc.NewServer()
			registerKVSCtlServer(gs, srv)
			if *flagVerbose {
				log.Printf("gRPC listening on %s", *flagGRPC)
			}
			if err := gs.Serve(lis); err != nil {
				log.Printf("gRPC serve error: %v", err)
			}
		}()
	}

	if *flagHTTP != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/admin", srv.handleAdmin)
		mux.HandleFunc("/api/status", srv.handleStatus)
		log.Printf("HTTP listening on %s", *flagHTTP)
		if err := http.ListenAndServe(*flagHTTP, mux); err != nil {
			log.Fatalf("HTTP serve error: %v", err)
		}
	} else {
		select {}
	}
}
